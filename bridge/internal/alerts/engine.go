package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/brewbridge/brewbridge/bridge/internal/config"
	"github.com/brewbridge/brewbridge/bridge/internal/coordinator"
	"github.com/brewbridge/brewbridge/bridge/internal/host"
	"github.com/brewbridge/brewbridge/pkg/types"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert is a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	EntryID    string     `json:"entry_id"`
	FloatID    string     `json:"float_id,omitempty"`
	FloatName  string     `json:"float_name,omitempty"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates rules against refreshed entries. Safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []rule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: rule|entry|float
	lastFire map[string]time.Time // cooldown per key
	history  []*Alert             // recently resolved alerts

	client *http.Client
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup // in-flight deliveries
}

// New creates an Engine. An Engine without rules is valid; Evaluate is then a
// no-op.
func New(cfg config.AlertsConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		now:      time.Now,
	}
	e.Update(cfg)
	return e
}

// Update replaces the rules and webhooks. Active alerts of rules that no
// longer exist are dropped without notification.
func (e *Engine) Update(cfg config.AlertsConfig) {
	rules := make([]rule, 0, len(cfg.Rules))
	keep := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, ok := parseCondition(r.Condition)
		if !ok {
			e.logger.Warn("alerts: skipping rule with malformed condition",
				"rule", r.Name, "condition", r.Condition)
			continue
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
		keep[r.Name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.webhooks = cfg.Webhooks
	for k, a := range e.active {
		if !keep[a.RuleName] {
			delete(e.active, k)
			delete(e.lastFire, k)
		}
	}
}

// Evaluate tests every rule against the entry's latest snapshot and status.
// Its signature matches host.Local.OnRefresh.
func (e *Engine) Evaluate(entry host.Entry) {
	e.evaluate(entry.ID, entry.Coordinator.Floats(), entry.Coordinator.Data(), entry.Coordinator.Status())
}

// evaluate fires and resolves alerts. Floats whose value is missing or not
// numeric keep their current alert state.
func (e *Engine) evaluate(entryID string, floats []types.Float, snap types.Snapshot, st coordinator.Status) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()

	for _, r := range rules {
		if r.cond.entryLevel() {
			v := st.SuccessPct
			if r.cond.field == fieldConsecutiveFailures {
				v = float64(st.ConsecutiveFailures)
			}
			e.apply(r, entryID, types.Float{}, v, r.cond.holds(v))
			continue
		}
		for _, f := range floats {
			raw, ok := snap.Get(f.ID, r.cond.field)
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			e.apply(r, entryID, f, v, r.cond.holds(v))
		}
	}
}

func (e *Engine) apply(r rule, entryID string, f types.Float, value float64, fires bool) {
	now := e.now()
	key := r.Name + "|" + entryID + "|" + f.ID

	e.mu.Lock()
	if fires {
		cooldown := r.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}
		if last, ok := e.lastFire[key]; ok && now.Sub(last) <= cooldown {
			e.mu.Unlock()
			return
		}
		sev := r.Severity
		if sev == "" {
			sev = "warning"
		}
		a := &Alert{
			ID:        fmt.Sprintf("%s:%s:%s:%d", r.Name, entryID, f.ID, now.UnixNano()),
			RuleName:  r.Name,
			EntryID:   entryID,
			FloatID:   f.ID,
			FloatName: f.Name,
			Severity:  sev,
			Value:     value,
			Message:   fmt.Sprintf("[%s] %s fired on %s: %s = %g", sev, r.Name, subject(entryID, f), r.Condition, value),
			FiredAt:   now,
			State:     "firing",
		}
		e.active[key] = a
		e.lastFire[key] = now
		alertCopy := *a
		e.mu.Unlock()

		e.logger.Warn("alert fired",
			"rule", r.Name, "entry", entryID, "float_id", f.ID, "value", value, "severity", sev)
		e.dispatch(&alertCopy)
		return
	}

	a, ok := e.active[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	delete(e.active, key)
	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *a
	e.mu.Unlock()

	e.logger.Info("alert resolved", "rule", r.Name, "entry", entryID, "float_id", f.ID)
	e.dispatch(&alertCopy)
}

func subject(entryID string, f types.Float) string {
	if f.ID == "" {
		return entryID
	}
	return fmt.Sprintf("%s/%s (%s)", entryID, f.Name, f.ID)
}

// Active returns copies of all firing alerts plus alerts resolved within the
// past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until all in-flight webhook deliveries have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) dispatch(a *Alert) {
	e.mu.Lock()
	hooks := e.webhooks
	e.mu.Unlock()
	if len(hooks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(hooks, a)
	}()
}
