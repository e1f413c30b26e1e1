package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/brewbridge/brewbridge/bridge/internal/alerts"
	"github.com/brewbridge/brewbridge/bridge/internal/host"
	"github.com/brewbridge/brewbridge/bridge/internal/security"
	"github.com/brewbridge/brewbridge/bridge/internal/sensor"
	"github.com/brewbridge/brewbridge/pkg/types"
)

// Handler is the HTTP handler for /api/v1/* and /metrics.
type Handler struct {
	host   *host.Local
	alerts *alerts.Engine    // nil: no alerting
	certs  *security.Monitor // nil: no certificate checks
	mux    *http.ServeMux
	now    func() time.Time
}

// Option configures optional data sources of a Handler.
type Option func(*Handler)

// WithAlerts serves the engine's alerts on /api/v1/alerts.
func WithAlerts(eng *alerts.Engine) Option {
	return func(h *Handler) { h.alerts = eng }
}

// WithCerts serves the monitor's latest result on /api/v1/certs and /metrics.
func WithCerts(m *security.Monitor) Option {
	return func(h *Handler) { h.certs = m }
}

// New creates a Handler reading from the given host and registers all routes.
func New(h *host.Local, opts ...Option) http.Handler {
	hd := &Handler{host: h, mux: http.NewServeMux(), now: time.Now}
	for _, o := range opts {
		o(hd)
	}

	hd.mux.HandleFunc("/api/v1/health", hd.health)
	hd.mux.HandleFunc("/api/v1/entries", hd.entries)
	hd.mux.HandleFunc("/api/v1/floats", hd.floats)
	hd.mux.HandleFunc("/api/v1/sensors", hd.listSensors)
	hd.mux.HandleFunc("/api/v1/sensors/", hd.getSensor) // subtree, extracts {id}
	hd.mux.HandleFunc("/api/v1/alerts", hd.listAlerts)
	hd.mux.HandleFunc("/api/v1/certs", hd.certStatus)
	hd.mux.HandleFunc("/api/v1/snapshot", hd.snapshot)
	hd.mux.HandleFunc("/metrics", hd.metrics)

	return hd
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}

	entries := h.host.List()
	resp := HealthResponse{EntryCount: len(entries)}
	for _, e := range entries {
		resp.SensorCount += len(e.Sensors)
		if e.LastFailure != "" {
			resp.FailingCount++
		}
	}
	for _, a := range h.activeAlerts() {
		if a.State == "firing" {
			resp.AlertCount++
		}
	}

	switch {
	case len(entries) == 0:
		resp.State = "unknown"
	case resp.FailingCount > 0:
		resp.State = "degraded"
	default:
		resp.State = "healthy"
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}

	entries := h.host.List()
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{
			ID:            e.ID,
			Floats:        e.Coordinator.Floats(),
			Status:        e.Coordinator.Status(),
			LastFailure:   e.LastFailure,
			LastFailureAt: formatTime(e.LastFailureAt),
			RegisteredAt:  formatTime(e.RegisteredAt),
			Diagnostics:   computeDiagnostics(e),
		})
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) floats(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}

	out := make([]FloatResponse, 0)
	for _, e := range h.host.List() {
		for _, f := range e.Coordinator.Floats() {
			out = append(out, FloatResponse{EntryID: e.ID, ID: f.ID, Name: f.Name})
		}
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) listSensors(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}

	out := make([]SensorResponse, 0)
	for _, e := range h.host.List() {
		for _, s := range e.Sensors {
			out = append(out, toSensorResponse(s))
		}
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) getSensor(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sensors/")
	if id == "" {
		h.listSensors(w, r)
		return
	}

	s, ok := h.host.Sensor(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "sensor not found")
		return
	}
	jsonResp(w, http.StatusOK, toSensorResponse(s))
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, h.activeAlerts())
}

func (h *Handler) certStatus(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	out := make([]*security.CertStatus, 0, 1)
	if cs := h.latestCert(); cs != nil {
		out = append(out, cs)
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !getOnly(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.host, h.now()))
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot collects the latest snapshot of every entry. Entries without a
// successful cycle yet map to an empty snapshot.
func BuildSnapshot(h *host.Local, now time.Time) SnapshotResponse {
	entries := h.List()
	out := SnapshotResponse{
		Entries:     make(map[string]types.Snapshot, len(entries)),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		snap := e.Coordinator.Data()
		if snap == nil {
			snap = types.Snapshot{}
		}
		out.Entries[e.ID] = snap
	}
	return out
}

func (h *Handler) activeAlerts() []*alerts.Alert {
	if h.alerts == nil {
		return []*alerts.Alert{}
	}
	return h.alerts.Active()
}

func (h *Handler) latestCert() *security.CertStatus {
	if h.certs == nil {
		return nil
	}
	return h.certs.Latest()
}

func toSensorResponse(s *sensor.Sensor) SensorResponse {
	resp := SensorResponse{
		UniqueID:    s.UniqueID(),
		Name:        s.Name(),
		EntryID:     s.EntryID,
		FloatID:     s.FloatID,
		Unit:        s.Kind.Unit,
		Icon:        s.Kind.Icon,
		DeviceClass: s.Kind.DeviceClass,
		StateClass:  sensor.StateClass,
		Device:      s.Device(),
	}
	if v, ok := s.State(); ok {
		resp.State = &v
	}
	return resp
}

func getOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
