// Package brewbraintest provides an in-process fake of the Brew Brain website
// for tests.
package brewbraintest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/brewbridge/brewbridge/pkg/types"
)

// Session is the cookie value the fake site hands out on login.
const Session = "sess=abc123"

// Site is a fake Brew Brain website. Its behaviour can be changed between
// requests through the setter methods.
type Site struct {
	*httptest.Server

	mu           sync.Mutex
	username     string
	password     string
	loginStatus  int
	floats       []types.Float
	measurements map[string]map[string]string
	floatStatus  map[string]int
	logins       int
	requests     []string
}

// NewSite starts a fake site accepting username/password and serving floats.
// Call Close when done.
func NewSite(username, password string, floats ...types.Float) *Site {
	s := &Site{
		username:     username,
		password:     password,
		loginStatus:  http.StatusOK,
		floats:       floats,
		measurements: make(map[string]map[string]string),
		floatStatus:  make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", s.login)
	mux.HandleFunc("/float", s.authed(s.floatList))
	mux.HandleFunc("/mothership/show/", s.authed(s.floatPage))
	mux.HandleFunc("/APIKey/latestMeasurements/", s.authed(s.latest))
	s.Server = httptest.NewServer(mux)
	return s
}

// SetMeasurements sets the values the float's measurements page displays.
func (s *Site) SetMeasurements(floatID string, m map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measurements[floatID] = m
}

// FailFloat makes the float's detail page answer with status. 0 clears it.
func (s *Site) FailFloat(floatID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.floatStatus, floatID)
		return
	}
	s.floatStatus[floatID] = status
}

// SetLoginStatus forces the login endpoint to answer with status.
func (s *Site) SetLoginStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatus = status
}

// Logins returns how many successful logins the site has served.
func (s *Site) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Requests returns the request paths seen so far, in order.
func (s *Site) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Site) record(r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path)
	s.mu.Unlock()
}

func (s *Site) login(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginStatus != http.StatusOK {
		w.WriteHeader(s.loginStatus)
		return
	}
	if r.PostForm.Get("name") != s.username || r.PostForm.Get("password") != s.password ||
		r.PostForm.Get("stay_signed_in") != "off" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	s.logins++
	w.Header().Set("Set-Cookie", Session+"; Path=/; HttpOnly")
	fmt.Fprint(w, "<html><body>welcome</body></html>")
}

func (s *Site) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Cookie") != Session {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (s *Site) floatList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(w, FloatListPage(s.floats...))
}

func (s *Site) floatPage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/mothership/show/")

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.floatStatus[id]; ok {
		w.WriteHeader(status)
		return
	}
	if _, ok := s.measurements[id]; !ok {
		fmt.Fprint(w, "<html><body><script>var nothing = 1;</script></body></html>")
		return
	}
	fmt.Fprint(w, FloatPage("/APIKey/latestMeasurements/"+id))
}

func (s *Site) latest(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/APIKey/latestMeasurements/")

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.measurements[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, MeasurementsPage(m))
}

// FloatListPage renders a float overview page with one marked element per
// float, plus an unmarked decoy link.
func FloatListPage(floats ...types.Float) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"Decoy\"><a href=\"/mothership/show/0\">Decoy</a></div>\n")
	for _, f := range floats {
		fmt.Fprintf(&b, "<div class=\"FloatIdentifier\"><a href=\"/mothership/show/%s\">%s</a></div>\n",
			f.ID, html.EscapeString(f.Name))
	}
	b.WriteString("</body></html>")
	return b.String()
}

// FloatPage renders a float detail page whose inline script loads path.
func FloatPage(path string) string {
	return `<html><head><script src="/js/app.js"></script></head><body>
<script>
$(function () { $("#latest").load("` + path + `"); });
</script></body></html>`
}

// MeasurementsPage renders a latest-measurements fragment. Values are shown
// the way the site does, with a unit suffix.
func MeasurementsPage(m map[string]string) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<div class=\"LatestMeasurementsContainer\">\n")
	for _, name := range names {
		fmt.Fprintf(&b, `<div class="BrewShowLatestMeasurement">
  <span class="MeasurementMeasurand"> %s </span>
  <b><span> %s unit</span></b>
</div>
`, html.EscapeString(name), html.EscapeString(m[name]))
	}
	b.WriteString("</div>")
	return b.String()
}
