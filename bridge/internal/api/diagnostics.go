package api

import (
	"fmt"
	"sort"

	"github.com/brewbridge/brewbridge/bridge/internal/host"
	"github.com/brewbridge/brewbridge/bridge/internal/sensor"
)

// DiagnosticHint is one human-readable insight about an entry's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from an entry's last refresh outcome and
// snapshot, most severe first.
func computeDiagnostics(e host.Entry) []DiagnosticHint {
	var hints []DiagnosticHint
	snap := e.Coordinator.Data()
	st := e.Coordinator.Status()

	if e.LastFailure != "" {
		detail := fmt.Sprintf(
			"The last refresh failed with %q. "+
				"The readings shown are from the last successful refresh. "+
				"Check the account credentials and that the Brew Brain service is reachable.",
			e.LastFailure,
		)
		if snap == nil {
			detail = fmt.Sprintf("The last refresh failed with %q and no readings have been collected yet.", e.LastFailure)
		}
		hints = append(hints, DiagnosticHint{
			Key:    "update_failed",
			Level:  "critical",
			Title:  "Refresh failing",
			Detail: detail,
		})
	}

	if snap == nil {
		if len(hints) == 0 {
			hints = append(hints, DiagnosticHint{
				Key:    "warming_up",
				Level:  "info",
				Title:  "Waiting for data",
				Detail: "No refresh has completed yet. Readings appear after the first successful cycle.",
			})
		}
		return hints
	}

	for _, f := range e.Coordinator.Floats() {
		if hasReading(snap[f.ID]) {
			continue
		}
		hints = append(hints, DiagnosticHint{
			Key:   "no_readings:" + f.ID,
			Level: "warning",
			Title: fmt.Sprintf("No readings from %s", f.Name),
			Detail: fmt.Sprintf(
				"The float page of %s (%s) did not yield any measurement. "+
					"The float may be offline, out of range of its mothership, or its page failed to load.",
				f.Name, f.ID,
			),
		})
	}

	if st.SuccessPct < 100 {
		v := st.SuccessPct
		level := "info"
		switch {
		case v < 70:
			level = "critical"
		case v < 90:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "success_rate",
			Level: level,
			Title: fmt.Sprintf("%.0f%% refresh success", v),
			Detail: fmt.Sprintf(
				"%.0f%% of the recent refresh cycles succeeded. "+
					"Occasional failures are usually transient outages of the service.",
				v,
			),
			Value: &v,
		})
	}

	if len(hints) == 0 {
		n := float64(len(e.Coordinator.Floats()))
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("Every refresh succeeded and all %.0f floats report readings.", n),
			Value:  &n,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] > levelRank[hints[j].Level]
	})
	return hints
}

var levelRank = map[string]int{"ok": 0, "info": 1, "warning": 2, "critical": 3}

// hasReading reports whether m carries at least one sensor value.
func hasReading(m map[string]string) bool {
	for _, k := range sensor.Kinds {
		if _, ok := m[k.Key]; ok {
			return true
		}
	}
	return false
}
