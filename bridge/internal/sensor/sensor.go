// Package sensor projects coordinator snapshots onto named, typed metrics.
//
// A Sensor is a read-only view: one Kind (Temperature, SG, Voltage) of one
// float. It carries the metadata a host needs to register it (unique ID,
// display name, unit, icon, device grouping) and reads its state from the
// latest snapshot on every call. Values pass through as strings.
package sensor

import (
	"log/slog"

	"github.com/brewbridge/brewbridge/pkg/types"
)

const (
	manufacturer = "Brew Brain"
	model        = "Float"

	// StateClass marks every float sensor as a live measurement.
	StateClass = "measurement"
)

// Kind describes one metric a float reports.
type Kind struct {
	// Key is the measurement name used on the Brew Brain page and in snapshots.
	Key         string `json:"key"`
	Unit        string `json:"unit,omitempty"`
	Icon        string `json:"icon"`
	DeviceClass string `json:"device_class,omitempty"`

	// MetricName is the Prometheus family name for this kind.
	MetricName string `json:"-"`
	Help       string `json:"-"`
}

var (
	Temperature = Kind{
		Key:         "Temperature",
		Unit:        "°C",
		Icon:        "mdi:thermometer",
		DeviceClass: "temperature",
		MetricName:  "brewbrain_float_temperature_celsius",
		Help:        "Wort temperature reported by the float.",
	}
	SpecificGravity = Kind{
		Key:        "SG",
		Icon:       "mdi:scale",
		MetricName: "brewbrain_float_specific_gravity",
		Help:       "Specific gravity reported by the float.",
	}
	Voltage = Kind{
		Key:         "Voltage",
		Unit:        "V",
		Icon:        "mdi:flash",
		DeviceClass: "voltage",
		MetricName:  "brewbrain_float_battery_volts",
		Help:        "Battery voltage reported by the float.",
	}
)

// Kinds lists every kind registered per float, in registration order.
var Kinds = []Kind{Temperature, SpecificGravity, Voltage}

// Source supplies the latest snapshot. *coordinator.Coordinator implements it.
type Source interface {
	Data() types.Snapshot
}

// DeviceInfo groups a float's sensors under one device.
type DeviceInfo struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	ViaDevice    string `json:"via_device"`
}

// Sensor is one Kind of one float.
type Sensor struct {
	Kind      Kind
	FloatID   string
	FloatName string
	EntryID   string

	src    Source
	logger *slog.Logger
}

// New returns a sensor reading kind for the float from src.
func New(src Source, entryID string, f types.Float, kind Kind, logger *slog.Logger) *Sensor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sensor{
		Kind:      kind,
		FloatID:   f.ID,
		FloatName: f.Name,
		EntryID:   entryID,
		src:       src,
		logger:    logger,
	}
}

// ForFloats builds every Kind for every float.
func ForFloats(src Source, entryID string, floats []types.Float, logger *slog.Logger) []*Sensor {
	out := make([]*Sensor, 0, len(floats)*len(Kinds))
	for _, f := range floats {
		for _, k := range Kinds {
			out = append(out, New(src, entryID, f, k, logger))
		}
	}
	return out
}

// UniqueID is stable across restarts: "<float id>_<kind key>".
func (s *Sensor) UniqueID() string {
	return s.FloatID + "_" + s.Kind.Key
}

// Name is the display name: "<float name> <kind key>".
func (s *Sensor) Name() string {
	return s.FloatName + " " + s.Kind.Key
}

// Device returns the device this sensor belongs to. Floats hang off the
// account entry.
func (s *Sensor) Device() DeviceInfo {
	return DeviceInfo{
		Identifier:   s.FloatID,
		Name:         s.FloatName,
		Manufacturer: manufacturer,
		Model:        model,
		ViaDevice:    s.EntryID,
	}
}

// State returns the current value. ok is false when the latest snapshot has
// no entry for the float or no value for this kind.
func (s *Sensor) State() (value string, ok bool) {
	data := s.src.Data()
	m, found := data[s.FloatID]
	if !found {
		s.logger.Warn("sensor: no data for float",
			"float_id", s.FloatID, "sensor_type", s.Kind.Key)
		return "", false
	}
	value, ok = m[s.Kind.Key]
	if !ok {
		s.logger.Debug("sensor: no value", "sensor", s.Name())
		return "", false
	}
	s.logger.Debug("sensor: state", "sensor", s.Name(), "value", value)
	return value, true
}
