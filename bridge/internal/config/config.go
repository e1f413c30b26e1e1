package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBaseURL        = "https://my.brewbrain.nl"
	DefaultScanInterval   = 900 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultConcurrency    = 1
	DefaultHTTPPort       = 8099
	DefaultWSInterval     = 5 * time.Second
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`

	// Alerts holds threshold rules on float readings and webhook targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is "<field> <op> <number>". Field is a measurement name such
	// as Temperature, SG or Voltage, or one of consecutive_failures and
	// success_pct. Op is one of > >= < <= ==.
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// BridgeConfig holds all bridge settings.
type BridgeConfig struct {
	// BaseURL is the root of the Brew Brain web service.
	BaseURL string `yaml:"base_url"`

	// ScanInterval controls how often every account is refreshed.
	ScanInterval time.Duration `yaml:"scan_interval"`

	// RequestTimeout bounds a single HTTP request to the service.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Concurrency is the number of floats fetched in parallel per cycle.
	// 1 keeps the fetches sequential.
	Concurrency int `yaml:"concurrency"`

	// HTTPPort is the port the REST API, /metrics and the websocket listen on.
	HTTPPort int `yaml:"http_port"`

	// WSInterval controls how often the websocket hub broadcasts.
	WSInterval time.Duration `yaml:"ws_interval"`

	// Accounts is the list of Brew Brain logins to poll.
	Accounts []Account `yaml:"accounts"`
}

// Account is one Brew Brain login. Each account becomes its own config entry
// with its own coordinator and sensors.
type Account struct {
	// ID identifies the entry; defaults to Username.
	ID string `yaml:"id"`

	Username string `yaml:"username"`

	// PasswordValue is a literal password. Prefer PasswordEnv.
	PasswordValue string `yaml:"password"`

	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the account password. PasswordEnv wins over the literal
// value when both are set.
func (a Account) Password() string {
	if a.PasswordEnv != "" {
		return os.Getenv(a.PasswordEnv)
	}
	return a.PasswordValue
}

// Title is the human-readable entry name.
func (a Account) Title() string {
	return "Brew Brain: " + a.Username
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	for i := range cfg.Bridge.Accounts {
		if cfg.Bridge.Accounts[i].ID == "" {
			cfg.Bridge.Accounts[i].ID = cfg.Bridge.Accounts[i].Username
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Bridge: BridgeConfig{
			BaseURL:        DefaultBaseURL,
			ScanInterval:   DefaultScanInterval,
			RequestTimeout: DefaultRequestTimeout,
			Concurrency:    DefaultConcurrency,
			HTTPPort:       DefaultHTTPPort,
			WSInterval:     DefaultWSInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	b := cfg.Bridge
	u, err := url.Parse(b.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("bridge.base_url %q is not an absolute url", b.BaseURL)
	}
	if b.ScanInterval <= 0 {
		return fmt.Errorf("bridge.scan_interval must be positive")
	}
	if b.RequestTimeout <= 0 {
		return fmt.Errorf("bridge.request_timeout must be positive")
	}
	if b.Concurrency <= 0 {
		return fmt.Errorf("bridge.concurrency must be positive")
	}
	if b.WSInterval <= 0 {
		return fmt.Errorf("bridge.ws_interval must be positive")
	}
	seen := make(map[string]bool, len(b.Accounts))
	for i, acc := range b.Accounts {
		if acc.Username == "" {
			return fmt.Errorf("accounts[%d]: username is required", i)
		}
		if acc.Password() == "" {
			return fmt.Errorf("accounts[%d] %q: password is required", i, acc.ID)
		}
		if seen[acc.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, acc.ID)
		}
		seen[acc.ID] = true
	}
	return validateAlerts(cfg.Alerts)
}

func validateAlerts(a AlertsConfig) error {
	names := make(map[string]bool, len(a.Rules))
	for i, r := range a.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("alerts.rules[%d]: duplicate name %q", i, r.Name)
		}
		names[r.Name] = true

		parts := strings.Fields(r.Condition)
		if len(parts) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition must be \"<field> <op> <number>\"", i, r.Name)
		}
		switch parts[1] {
		case ">", ">=", "<", "<=", "==":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown operator %q", i, r.Name, parts[1])
		}
		if _, err := strconv.ParseFloat(parts[2], 64); err != nil {
			return fmt.Errorf("alerts.rules[%d] %q: threshold %q is not a number", i, r.Name, parts[2])
		}
	}
	for i, w := range a.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
