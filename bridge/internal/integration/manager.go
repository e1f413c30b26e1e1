package integration

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// ClientFactory builds the client for an entry.
type ClientFactory func(e Entry) Client

// Manager runs one Handle per configured entry and reconciles them when the
// configuration changes.
type Manager struct {
	host      Host
	newClient ClientFactory
	logger    *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewManager returns an empty Manager.
func NewManager(h Host, newClient ClientFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		host:      h,
		newClient: newClient,
		logger:    logger,
		handles:   make(map[string]*Handle),
	}
}

// Apply makes the running entries match entries: removed ones are unloaded,
// new ones set up and changed ones restarted. A changed entry keeps running
// with its old settings until its replacement has logged in, discovered its
// floats and refreshed once. Setup failures are logged and returned per entry
// ID; the remaining entries are still applied.
func (m *Manager) Apply(ctx context.Context, entries []Entry) map[string]error {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]Entry, len(entries))
	for _, e := range entries {
		want[e.ID] = e
	}

	for id, h := range m.handles {
		if _, ok := want[id]; ok {
			continue
		}
		m.logger.Info("integration: unloading entry", "entry", id)
		Unload(m.host, h)
		delete(m.handles, id)
	}

	errs := make(map[string]error)
	for _, e := range entries {
		old, running := m.handles[e.ID]
		if running && old.Entry == e {
			continue
		}

		p, err := prepare(ctx, e, m.newClient(e), m.logger)
		if err != nil {
			if running {
				m.logger.Error("integration: restart failed, keeping previous settings", "entry", e.ID, "err", err)
			} else {
				m.logger.Error("integration: setup failed", "entry", e.ID, "err", err)
			}
			errs[e.ID] = err
			continue
		}

		if running {
			m.logger.Info("integration: restarting entry", "entry", e.ID)
			Unload(m.host, old)
			delete(m.handles, e.ID)
		}
		h, err := p.activate(m.host)
		if err != nil {
			m.logger.Error("integration: setup failed", "entry", e.ID, "err", err)
			errs[e.ID] = err
			continue
		}
		m.handles[e.ID] = h
	}
	return errs
}

// Entries returns the IDs of the running entries, sorted.
func (m *Manager) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close unloads every running entry.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.handles {
		Unload(m.host, h)
		delete(m.handles, id)
	}
}
