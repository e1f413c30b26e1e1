package api

import (
	"time"

	"github.com/brewbridge/brewbridge/bridge/internal/coordinator"
	"github.com/brewbridge/brewbridge/bridge/internal/sensor"
	"github.com/brewbridge/brewbridge/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State        string `json:"state"`
	EntryCount   int    `json:"entry_count"`
	SensorCount  int    `json:"sensor_count"`
	FailingCount int    `json:"failing_count"`
	AlertCount   int    `json:"alert_count"` // firing alerts
}

// EntryResponse is one account in GET /api/v1/entries.
type EntryResponse struct {
	ID            string             `json:"id"`
	Floats        []types.Float      `json:"floats"`
	Status        coordinator.Status `json:"status"`
	LastFailure   string             `json:"last_failure,omitempty"`
	LastFailureAt string             `json:"last_failure_at,omitempty"` // RFC3339
	RegisteredAt  string             `json:"registered_at"`             // RFC3339
	Diagnostics   []DiagnosticHint   `json:"diagnostics"`
}

// FloatResponse is one float in GET /api/v1/floats.
type FloatResponse struct {
	EntryID string `json:"entry_id"`
	ID      string `json:"id"`
	Name    string `json:"name"`
}

// SensorResponse is one sensor in GET /api/v1/sensors.
type SensorResponse struct {
	UniqueID    string            `json:"unique_id"`
	Name        string            `json:"name"`
	EntryID     string            `json:"entry_id"`
	FloatID     string            `json:"float_id"`
	State       *string           `json:"state"` // null when unset
	Unit        string            `json:"unit,omitempty"`
	Icon        string            `json:"icon"`
	DeviceClass string            `json:"device_class,omitempty"`
	StateClass  string            `json:"state_class"`
	Device      sensor.DeviceInfo `json:"device"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every websocket message.
type SnapshotResponse struct {
	Entries     map[string]types.Snapshot `json:"entries"`
	GeneratedAt string                    `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
