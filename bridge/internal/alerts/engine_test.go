package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brewbridge/brewbridge/bridge/internal/config"
	"github.com/brewbridge/brewbridge/bridge/internal/coordinator"
	"github.com/brewbridge/brewbridge/bridge/internal/host"
	"github.com/brewbridge/brewbridge/pkg/types"
)

var red = types.Float{ID: "42", Name: "Red"}

func snapWith(temp string) types.Snapshot {
	return types.Snapshot{"42": {types.KeyID: "42", types.KeyName: "Red", "Temperature": temp}}
}

// newTestEngine returns an engine with a controllable clock.
func newTestEngine(rules ...config.AlertRule) (*Engine, *time.Time) {
	e := New(config.AlertsConfig{Rules: rules}, nil)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, &now
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want condition
	}{
		{"Temperature > 24", true, condition{"Temperature", ">", 24}},
		{"SG <= 1.010", true, condition{"SG", "<=", 1.010}},
		{"consecutive_failures >= 3", true, condition{"consecutive_failures", ">=", 3}},
		{"Temperature >> 24", false, condition{}},
		{"Temperature > warm", false, condition{}},
		{"Temperature", false, condition{}},
	}
	for _, tc := range tests {
		got, ok := parseCondition(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseCondition(%q) = %+v, %v; want %+v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEvaluate_FireCooldownResolve(t *testing.T) {
	e, now := newTestEngine(config.AlertRule{
		Name:      "warm",
		Condition: "Temperature > 24",
		Severity:  "critical",
		Cooldown:  10 * time.Minute,
	})
	floats := []types.Float{red}

	e.evaluate("home", floats, snapWith("25.5"), coordinator.Status{})
	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("active: got %d, want 1", len(active))
	}
	a := active[0]
	if a.State != "firing" || a.EntryID != "home" || a.FloatID != "42" || a.Value != 25.5 {
		t.Errorf("alert = %+v", a)
	}
	if !strings.Contains(a.Message, "Red") {
		t.Errorf("message %q does not name the float", a.Message)
	}
	firstID := a.ID

	// Still firing inside the cooldown: no new alert.
	*now = now.Add(5 * time.Minute)
	e.evaluate("home", floats, snapWith("26"), coordinator.Status{})
	if got := e.Active(); len(got) != 1 || got[0].ID != firstID {
		t.Errorf("within cooldown: active = %+v", got)
	}

	// Back under the threshold: resolved, still listed as recent.
	*now = now.Add(time.Minute)
	e.evaluate("home", floats, snapWith("20"), coordinator.Status{})
	got := e.Active()
	if len(got) != 1 || got[0].State != "resolved" || got[0].ResolvedAt == nil {
		t.Fatalf("after resolve: active = %+v", got)
	}

	// Resolved alerts drop out after an hour.
	*now = now.Add(2 * time.Hour)
	if got := e.Active(); len(got) != 0 {
		t.Errorf("after window: active = %+v", got)
	}
}

func TestEvaluate_MissingOrNonNumericKeepsState(t *testing.T) {
	e, now := newTestEngine(config.AlertRule{Name: "warm", Condition: "Temperature > 24"})
	floats := []types.Float{red}

	e.evaluate("home", floats, snapWith("30"), coordinator.Status{})
	*now = now.Add(time.Minute)
	e.evaluate("home", floats, types.Snapshot{"42": {types.KeyID: "42", types.KeyName: "Red"}}, coordinator.Status{})
	e.evaluate("home", floats, snapWith("n/a"), coordinator.Status{})

	got := e.Active()
	if len(got) != 1 || got[0].State != "firing" {
		t.Errorf("active = %+v, want one firing alert", got)
	}
}

func TestEvaluate_EntryLevelRule(t *testing.T) {
	e, _ := newTestEngine(config.AlertRule{Name: "stuck", Condition: "consecutive_failures >= 3"})

	e.evaluate("home", nil, nil, coordinator.Status{ConsecutiveFailures: 2})
	if got := e.Active(); len(got) != 0 {
		t.Fatalf("2 failures: active = %+v", got)
	}
	e.evaluate("home", nil, nil, coordinator.Status{ConsecutiveFailures: 3})
	got := e.Active()
	if len(got) != 1 || got[0].FloatID != "" || got[0].Value != 3 {
		t.Errorf("3 failures: active = %+v", got)
	}
}

func TestUpdate_DropsRemovedRules(t *testing.T) {
	e, _ := newTestEngine(config.AlertRule{Name: "warm", Condition: "Temperature > 24"})
	e.evaluate("home", []types.Float{red}, snapWith("30"), coordinator.Status{})

	e.Update(config.AlertsConfig{Rules: []config.AlertRule{{Name: "cold", Condition: "Temperature < 10"}}})
	if got := e.Active(); len(got) != 0 {
		t.Errorf("active after update = %+v, want none", got)
	}
}

type hookRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (h *hookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.bodies = append(h.bodies, string(b))
	h.mu.Unlock()
}

func (h *hookRecorder) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.bodies...)
}

func TestWebhook_HTTPAndSlack(t *testing.T) {
	httpHook, slackHook := &hookRecorder{}, &hookRecorder{}
	httpSrv := httptest.NewServer(httpHook)
	defer httpSrv.Close()
	slackSrv := httptest.NewServer(slackHook)
	defer slackSrv.Close()

	t.Setenv("TEST_HOOK_HTTP", httpSrv.URL)
	t.Setenv("TEST_HOOK_SLACK", slackSrv.URL)

	e, now := newTestEngine(config.AlertRule{Name: "warm", Condition: "Temperature > 24", Severity: "critical"})
	e.Update(config.AlertsConfig{
		Rules: []config.AlertRule{{Name: "warm", Condition: "Temperature > 24", Severity: "critical"}},
		Webhooks: []config.WebhookConfig{
			{Type: "http", URLEnv: "TEST_HOOK_HTTP"},
			{Type: "slack", URLEnv: "TEST_HOOK_SLACK"},
			{Type: "http", URLEnv: "TEST_HOOK_UNSET"},
		},
	})

	e.evaluate("home", []types.Float{red}, snapWith("25"), coordinator.Status{})
	*now = now.Add(time.Minute)
	e.evaluate("home", []types.Float{red}, snapWith("20"), coordinator.Status{})
	e.Wait()

	bodies := httpHook.all()
	if len(bodies) != 2 {
		t.Fatalf("http hook: got %d deliveries, want 2", len(bodies))
	}
	states := map[string]bool{}
	for _, b := range bodies {
		var payload struct {
			Alert Alert `json:"alert"`
		}
		if err := json.Unmarshal([]byte(b), &payload); err != nil {
			t.Fatalf("decode %s: %v", b, err)
		}
		if payload.Alert.RuleName != "warm" {
			t.Errorf("rule_name = %q", payload.Alert.RuleName)
		}
		states[payload.Alert.State] = true
	}
	if !states["firing"] || !states["resolved"] {
		t.Errorf("states delivered = %v, want firing and resolved", states)
	}

	slack := slackHook.all()
	if len(slack) != 2 {
		t.Fatalf("slack hook: got %d deliveries, want 2", len(slack))
	}
	joined := strings.Join(slack, "\n")
	if !strings.Contains(joined, "[CRITICAL]") || !strings.Contains(joined, "[RESOLVED]") {
		t.Errorf("slack payloads = %s", joined)
	}
}

type stubFetcher map[string]types.Measurements

func (stubFetcher) Login(context.Context, types.Credentials) (string, error) { return "sess=x", nil }

func (f stubFetcher) FetchFloatData(_ context.Context, _, id string) (types.Measurements, error) {
	return f[id], nil
}

func TestEvaluate_FromHostEntry(t *testing.T) {
	coord := coordinator.New("home", stubFetcher{"42": {"Voltage": "3.2"}},
		types.Credentials{Username: "u", Password: "p"}, []types.Float{red}, coordinator.Options{})
	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	e, _ := newTestEngine(config.AlertRule{Name: "battery", Condition: "Voltage < 3.5"})
	e.Evaluate(host.Entry{ID: "home", Coordinator: coord})

	got := e.Active()
	if len(got) != 1 || got[0].RuleName != "battery" || got[0].Value != 3.2 {
		t.Errorf("active = %+v", got)
	}
}
