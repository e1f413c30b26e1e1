package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brewbridge/brewbridge/bridge/internal/coordinator"
	"github.com/brewbridge/brewbridge/bridge/internal/sensor"
	"github.com/brewbridge/brewbridge/pkg/types"
)

// RefreshFunc runs one refresh cycle. A non-nil error is an update failure.
type RefreshFunc = func(ctx context.Context) error

// Host is the capability set the integration consumes from its host.
type Host interface {
	// RegisterMetrics binds sensors to the entry. The coordinator backing them
	// is passed so the host can report refresh status.
	RegisterMetrics(entryID string, coord *coordinator.Coordinator, sensors []*sensor.Sensor) error

	// ScheduleRefresh calls refresh every interval until ctx is done.
	ScheduleRefresh(ctx context.Context, entryID string, interval time.Duration, refresh RefreshFunc)

	// Unregister removes everything registered for the entry.
	Unregister(entryID string)
}

// Client is the Brew Brain client surface setup needs.
type Client interface {
	coordinator.Fetcher
	ListFloats(ctx context.Context, token string) ([]types.Float, error)
}

// Entry is one configured account.
type Entry struct {
	ID          string
	Title       string
	Credentials types.Credentials
	Interval    time.Duration
	Concurrency int
}

// Handle is a set-up entry. Pass it to Unload.
type Handle struct {
	Entry       Entry
	Coordinator *coordinator.Coordinator
	Sensors     []*sensor.Sensor

	cancel context.CancelFunc
}

// Setup brings an entry up. ctx bounds the setup calls only; the scheduled
// refreshes run until Unload.
func Setup(ctx context.Context, h Host, e Entry, c Client, logger *slog.Logger) (*Handle, error) {
	p, err := prepare(ctx, e, c, logger)
	if err != nil {
		return nil, err
	}
	return p.activate(h)
}

// prepared is an entry that logged in, discovered its floats and completed
// its first refresh, but is not registered with a host yet.
type prepared struct {
	entry   Entry
	coord   *coordinator.Coordinator
	sensors []*sensor.Sensor
	logger  *slog.Logger
}

func prepare(ctx context.Context, e Entry, c Client, logger *slog.Logger) (*prepared, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("entry", e.ID)
	logger.Info("integration: setting up", "username", e.Credentials.Username)

	token, err := c.Login(ctx, e.Credentials)
	if err != nil {
		return nil, fmt.Errorf("integration: setup %q: %w", e.ID, err)
	}

	floats, err := c.ListFloats(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("integration: setup %q: list floats: %w", e.ID, err)
	}
	for _, f := range floats {
		logger.Info("integration: float", "float_id", f.ID, "name", f.Name)
	}

	coord := coordinator.New(e.ID, c, e.Credentials, floats, coordinator.Options{
		Concurrency: e.Concurrency,
		Logger:      logger,
	})
	if err := coord.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("integration: setup %q: first refresh: %w", e.ID, err)
	}

	return &prepared{
		entry:   e,
		coord:   coord,
		sensors: sensor.ForFloats(coord, e.ID, floats, logger),
		logger:  logger,
	}, nil
}

// activate registers the sensors and schedules the refreshes.
func (p *prepared) activate(h Host) (*Handle, error) {
	e := p.entry
	if err := h.RegisterMetrics(e.ID, p.coord, p.sensors); err != nil {
		return nil, fmt.Errorf("integration: setup %q: register: %w", e.ID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h.ScheduleRefresh(runCtx, e.ID, e.Interval, p.coord.Refresh)

	p.logger.Info("integration: set up", "floats", len(p.coord.Floats()), "sensors", len(p.sensors))
	return &Handle{Entry: e, Coordinator: p.coord, Sensors: p.sensors, cancel: cancel}, nil
}

// Unload stops the entry's scheduled refreshes and unregisters its sensors.
func Unload(h Host, handle *Handle) {
	handle.cancel()
	h.Unregister(handle.Entry.ID)
}
