package brewbrain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brewbridge/brewbridge/pkg/types"
)

const (
	defaultRequestTimeout = 30 * time.Second

	loginPath  = "/user/login"
	floatsPath = "/float"
	floatPath  = "/mothership/show/"

	cookieHeader = "Set-Cookie"
)

// Client is a Brew Brain website client. It is safe for concurrent use; the
// session token is passed explicitly to every authenticated call.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the site rooted at baseURL
// (for example "https://my.brewbrain.nl").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultRequestTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login posts the login form and returns the session token: the first
// ";"-separated segment of the Set-Cookie header. Any status other than 200
// is an *AuthError. No retry is attempted.
func (c *Client) Login(ctx context.Context, creds types.Credentials) (string, error) {
	form := url.Values{
		"name":           {creds.Username},
		"password":       {creds.Password},
		"stay_signed_in": {"off"},
	}
	endpoint := c.baseURL + loginPath

	c.logger.Debug("brewbrain: logging in",
		"url", endpoint,
		"username", creds.Username,
		"password", strings.Repeat("*", len(creds.Password)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("brewbrain: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("brewbrain: login: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("brewbrain: login rejected", "status", resp.StatusCode)
		return "", &AuthError{StatusCode: resp.StatusCode}
	}

	token := SessionToken(resp.Header.Get(cookieHeader))
	if token == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Reason: "no session cookie in response"}
	}

	c.logger.Debug("brewbrain: logged in", "status", resp.StatusCode)
	return token, nil
}

// FetchAuthenticated POSTs to rawURL with the session token as the Cookie
// header and returns the response body. Any status other than 200 is a
// *FetchError.
func (c *Client) FetchAuthenticated(ctx context.Context, token, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("brewbrain: build request: %w", err)
	}
	req.Header.Set("Cookie", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("brewbrain: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("brewbrain: fetch failed", "url", rawURL, "status", resp.StatusCode)
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("brewbrain: read %s: %w", rawURL, err)
	}
	c.logger.Debug("brewbrain: fetched", "url", rawURL, "status", resp.StatusCode, "bytes", len(body))
	return string(body), nil
}

// ListFloats fetches the float overview page and returns the floats on it in
// page order.
func (c *Client) ListFloats(ctx context.Context, token string) ([]types.Float, error) {
	page, err := c.FetchAuthenticated(ctx, token, c.baseURL+floatsPath)
	if err != nil {
		return nil, err
	}
	floats, err := ParseFloats(page, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("brewbrain: found floats", "count", len(floats))
	return floats, nil
}

// FetchFloatData returns the latest measurements of one float. The float page
// embeds the measurements URL in an inline script; that URL is fetched and its
// measurement blocks parsed. A page without the URL yields empty Measurements.
func (c *Client) FetchFloatData(ctx context.Context, token, floatID string) (types.Measurements, error) {
	c.logger.Info("brewbrain: fetching float", "float_id", floatID)

	page, err := c.FetchAuthenticated(ctx, token, c.baseURL+floatPath+url.PathEscape(floatID))
	if err != nil {
		return nil, err
	}

	path, err := FindMeasurementsPath(page)
	if err != nil {
		return nil, err
	}
	if path == "" {
		c.logger.Warn("brewbrain: no measurements url on float page", "float_id", floatID)
		return types.Measurements{}, nil
	}
	c.logger.Debug("brewbrain: measurements url", "float_id", floatID, "path", path)

	body, err := c.FetchAuthenticated(ctx, token, c.baseURL+path)
	if err != nil {
		return nil, err
	}

	m, err := ParseMeasurements(body)
	if err != nil {
		return nil, err
	}
	for name, value := range m {
		c.logger.Info("brewbrain: measurement", "float_id", floatID, "name", name, "value", value)
	}
	return m, nil
}
