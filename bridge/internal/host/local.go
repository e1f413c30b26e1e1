package host

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/brewbridge/brewbridge/bridge/internal/coordinator"
	"github.com/brewbridge/brewbridge/bridge/internal/sensor"
)

// Entry is a registered config entry as seen by readers.
type Entry struct {
	ID           string
	Coordinator  *coordinator.Coordinator
	Sensors      []*sensor.Sensor
	RegisteredAt time.Time

	// LastFailure is the most recent update failure, cleared by the next
	// successful refresh.
	LastFailure   string
	LastFailureAt time.Time
}

// Local is an in-process host. The zero value is not usable; call New.
type Local struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	sensors map[string]*sensor.Sensor // by unique ID

	observers []func(Entry)

	logger *slog.Logger
	now    func() time.Time // injectable for deterministic tests
	wg     sync.WaitGroup
}

// New returns an empty Local host.
func New(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		entries: make(map[string]*Entry),
		sensors: make(map[string]*sensor.Sensor),
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterMetrics adds an entry and its sensors. It fails if the entry is
// already registered or a sensor's unique ID is taken.
func (l *Local) RegisterMetrics(entryID string, coord *coordinator.Coordinator, sensors []*sensor.Sensor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[entryID]; ok {
		return fmt.Errorf("host: entry %q already registered", entryID)
	}
	for _, s := range sensors {
		if _, ok := l.sensors[s.UniqueID()]; ok {
			return fmt.Errorf("host: sensor %q already registered", s.UniqueID())
		}
	}

	l.entries[entryID] = &Entry{
		ID:           entryID,
		Coordinator:  coord,
		Sensors:      sensors,
		RegisteredAt: l.now(),
	}
	for _, s := range sensors {
		l.sensors[s.UniqueID()] = s
	}
	l.logger.Info("host: registered entry", "entry", entryID, "sensors", len(sensors))
	return nil
}

// OnRefresh adds fn to the functions called after every scheduled refresh of
// a registered entry, with a copy of the entry as recorded. Register observers
// before scheduling refreshes.
func (l *Local) OnRefresh(fn func(Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// ScheduleRefresh calls refresh every interval until ctx is cancelled. The
// next tick waits for the current refresh to return.
func (l *Local) ScheduleRefresh(ctx context.Context, entryID string, interval time.Duration, refresh func(ctx context.Context) error) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				err := refresh(ctx)
				if ctx.Err() != nil {
					return
				}
				l.recordRefresh(entryID, err)
			}
		}
	}()
}

func (l *Local) recordRefresh(entryID string, err error) {
	l.mu.Lock()
	e, ok := l.entries[entryID]
	if !ok {
		l.mu.Unlock()
		return
	}
	if err != nil {
		l.logger.Error("host: update failed, keeping last data", "entry", entryID, "err", err)
		e.LastFailure = err.Error()
		e.LastFailureAt = l.now()
	} else {
		e.LastFailure = ""
		l.logger.Debug("host: refreshed", "entry", entryID)
	}
	snapshot := *e
	observers := l.observers
	l.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// Unregister removes the entry and its sensors.
func (l *Local) Unregister(entryID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[entryID]
	if !ok {
		return
	}
	for _, s := range e.Sensors {
		delete(l.sensors, s.UniqueID())
	}
	delete(l.entries, entryID)
	l.logger.Info("host: unregistered entry", "entry", entryID)
}

// Get returns a copy of the entry.
func (l *Local) Get(entryID string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[entryID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns copies of all entries sorted by ID.
func (l *Local) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sensor looks a sensor up by unique ID.
func (l *Local) Sensor(uniqueID string) (*sensor.Sensor, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sensors[uniqueID]
	return s, ok
}

// Count returns the number of registered entries.
func (l *Local) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Wait blocks until every refresh loop has exited.
func (l *Local) Wait() {
	l.wg.Wait()
}
