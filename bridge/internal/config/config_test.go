package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
bridge:
  base_url: "http://localhost:9000"
  scan_interval: 60s
  request_timeout: 5s
  concurrency: 4
  http_port: 9100
  accounts:
    - id: home
      username: brewer
      password: hunter2
`
	cfg := loadFromString(t, yaml)

	if cfg.Bridge.BaseURL != "http://localhost:9000" {
		t.Errorf("base_url: got %q", cfg.Bridge.BaseURL)
	}
	if cfg.Bridge.ScanInterval != time.Minute {
		t.Errorf("scan_interval: got %v", cfg.Bridge.ScanInterval)
	}
	if cfg.Bridge.Concurrency != 4 {
		t.Errorf("concurrency: got %d", cfg.Bridge.Concurrency)
	}
	if len(cfg.Bridge.Accounts) != 1 {
		t.Fatalf("accounts: got %d, want 1", len(cfg.Bridge.Accounts))
	}
	acc := cfg.Bridge.Accounts[0]
	if acc.ID != "home" {
		t.Errorf("account id: got %q", acc.ID)
	}
	if acc.Password() != "hunter2" {
		t.Errorf("password: got %q", acc.Password())
	}
	if acc.Title() != "Brew Brain: brewer" {
		t.Errorf("title: got %q", acc.Title())
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
bridge:
  accounts:
    - username: brewer
      password: hunter2
`
	cfg := loadFromString(t, yaml)

	if cfg.Bridge.BaseURL != DefaultBaseURL {
		t.Errorf("default base_url: got %q, want %q", cfg.Bridge.BaseURL, DefaultBaseURL)
	}
	if cfg.Bridge.ScanInterval != DefaultScanInterval {
		t.Errorf("default scan_interval: got %v, want %v", cfg.Bridge.ScanInterval, DefaultScanInterval)
	}
	if cfg.Bridge.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("default request_timeout: got %v, want %v", cfg.Bridge.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.Bridge.Concurrency != DefaultConcurrency {
		t.Errorf("default concurrency: got %d, want %d", cfg.Bridge.Concurrency, DefaultConcurrency)
	}
	if cfg.Bridge.HTTPPort != DefaultHTTPPort {
		t.Errorf("default http_port: got %d, want %d", cfg.Bridge.HTTPPort, DefaultHTTPPort)
	}
	// id falls back to the username.
	if got := cfg.Bridge.Accounts[0].ID; got != "brewer" {
		t.Errorf("default account id: got %q, want brewer", got)
	}
}

func TestLoad_PasswordFromEnv(t *testing.T) {
	t.Setenv("BREWBRAIN_PASSWORD", "fromenv")
	yaml := `
bridge:
  accounts:
    - username: brewer
      password: literal
      password_env: BREWBRAIN_PASSWORD
`
	cfg := loadFromString(t, yaml)
	if got := cfg.Bridge.Accounts[0].Password(); got != "fromenv" {
		t.Errorf("Password(): got %q, want fromenv", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing username", `
bridge:
  accounts:
    - password: hunter2
`},
		{"missing password", `
bridge:
  accounts:
    - username: brewer
`},
		{"unset password env", `
bridge:
  accounts:
    - username: brewer
      password_env: BREWBRIDGE_TEST_UNSET_VAR
`},
		{"duplicate id", `
bridge:
  accounts:
    - username: brewer
      password: a
    - username: brewer
      password: b
`},
		{"relative base url", `
bridge:
  base_url: "/brewbrain"
`},
		{"zero concurrency", `
bridge:
  concurrency: 0
`},
		{"negative interval", `
bridge:
  scan_interval: -1s
`},
		{"bad yaml", "bridge: [unclosed"},
		{"alert without name", `
alerts:
  rules:
    - condition: "Temperature > 24"
`},
		{"alert bad operator", `
alerts:
  rules:
    - name: warm
      condition: "Temperature => 24"
`},
		{"alert bad threshold", `
alerts:
  rules:
    - name: warm
      condition: "Temperature > hot"
`},
		{"alert short condition", `
alerts:
  rules:
    - name: warm
      condition: "Temperature"
`},
		{"unknown webhook type", `
alerts:
  webhooks:
    - type: pager
      url_env: HOOK
`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_Alerts(t *testing.T) {
	t.Setenv("BREW_HOOK", "http://hooks.example/x")
	yaml := `
alerts:
  rules:
    - name: fermenter-warm
      condition: "Temperature > 24"
      severity: critical
      cooldown: 30m
    - name: battery-low
      condition: "Voltage < 3.5"
  webhooks:
    - type: slack
      url_env: BREW_HOOK
`
	cfg := loadFromString(t, yaml)
	if len(cfg.Alerts.Rules) != 2 {
		t.Fatalf("rules: got %d, want 2", len(cfg.Alerts.Rules))
	}
	if r := cfg.Alerts.Rules[0]; r.Severity != "critical" || r.Cooldown != 30*time.Minute {
		t.Errorf("rule[0] = %+v", r)
	}
	if got := cfg.Alerts.Webhooks[0].URL(); got != "http://hooks.example/x" {
		t.Errorf("webhook URL: got %q", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "bridge:\n  accounts: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "bridge:\n  accounts:\n    - username: brewer\n      password: x\n")

	// A truncating write can surface an intermediate empty-file reload first.
	deadline := time.After(3 * time.Second)
	for found := false; !found; {
		select {
		case c := <-reloaded:
			found = len(c.Bridge.Accounts) == 1
		case <-deadline:
			t.Fatal("no reload with the new account observed")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatch_ReloadsOnAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "bridge:\n  accounts: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		})
	}()
	time.Sleep(100 * time.Millisecond)

	// Each save replaces the file, so the second one only reloads if the
	// watch survived the first.
	accounts := "bridge:\n  accounts:\n"
	for round := 1; round <= 2; round++ {
		accounts += fmt.Sprintf("    - username: brewer%d\n      password: x\n", round)
		tmp := filepath.Join(dir, "config.yaml.tmp")
		writeFile(t, tmp, accounts)
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("rename: %v", err)
		}

		deadline := time.After(3 * time.Second)
		for found := false; !found; {
			select {
			case c := <-reloaded:
				found = len(c.Bridge.Accounts) == round
			case <-deadline:
				t.Fatalf("save %d: no reload with %d accounts observed", round, round)
			}
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatch_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "bridge:\n  accounts: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 16)
	go func() {
		_ = Watch(ctx, path, nil, func(c *Config) { reloaded <- c })
	}()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "notes.txt"), "not a config")
	select {
	case c := <-reloaded:
		t.Fatalf("unexpected reload: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)
	return Load(path)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
}
