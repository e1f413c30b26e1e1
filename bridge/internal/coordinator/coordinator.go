package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brewbridge/brewbridge/pkg/types"
)

// historyWindow is the number of recent cycle outcomes kept for SuccessPct.
const historyWindow = 20

// State is the coordinator's position in the refresh cycle.
type State string

const (
	StateIdle       State = "idle"
	StateRefreshing State = "refreshing"
)

// Fetcher is the part of the Brew Brain client a refresh cycle needs.
type Fetcher interface {
	Login(ctx context.Context, creds types.Credentials) (string, error)
	FetchFloatData(ctx context.Context, token, floatID string) (types.Measurements, error)
}

// UpdateFailedError is returned by Refresh when the whole cycle failed. The
// previously published snapshot is left untouched.
type UpdateFailedError struct {
	Err error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("coordinator: update failed: %v", e.Err)
}

func (e *UpdateFailedError) Unwrap() error { return e.Err }

// Options tune a Coordinator. The zero value fetches sequentially and logs to
// slog.Default().
type Options struct {
	// Concurrency caps parallel float fetches. Values below 2 keep them sequential.
	Concurrency int

	Logger *slog.Logger

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// Status summarises recent refresh cycles.
type Status struct {
	State               State     `json:"state"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	SuccessPct          float64   `json:"success_pct"`
}

// Coordinator owns the session and the published snapshot of one account.
//
// All exported methods are safe for concurrent use. Refresh calls are
// serialised.
type Coordinator struct {
	name        string
	fetcher     Fetcher
	creds       types.Credentials
	floats      []types.Float
	concurrency int
	logger      *slog.Logger
	now         func() time.Time

	data  atomic.Pointer[types.Snapshot]
	state atomic.Value // State

	cycle sync.Mutex // held for the duration of one Refresh

	mu       sync.Mutex
	history  []bool
	lastTry  time.Time
	lastOK   time.Time
	lastErr  error
	failures int
}

// New returns a Coordinator for the given floats. floats is the fixed set
// discovered at setup; it is never re-discovered.
func New(name string, f Fetcher, creds types.Credentials, floats []types.Float, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Coordinator{
		name:        name,
		fetcher:     f,
		creds:       creds,
		floats:      append([]types.Float(nil), floats...),
		concurrency: opts.Concurrency,
		logger:      opts.Logger.With("coordinator", name),
		now:         opts.Now,
	}
	c.state.Store(StateIdle)
	c.logger.Info("coordinator: initialized", "floats", len(floats))
	return c
}

// Name returns the coordinator's name.
func (c *Coordinator) Name() string { return c.name }

// Floats returns the floats discovered at setup, in page order.
func (c *Coordinator) Floats() []types.Float {
	return append([]types.Float(nil), c.floats...)
}

// Data returns the latest successfully built snapshot, or nil before the first
// successful cycle. Callers must not modify it.
func (c *Coordinator) Data() types.Snapshot {
	if p := c.data.Load(); p != nil {
		return *p
	}
	return nil
}

// State reports whether a cycle is in progress.
func (c *Coordinator) State() State {
	return c.state.Load().(State)
}

// Refresh runs one cycle: log in, fetch every float, publish the snapshot.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.cycle.Lock()
	defer c.cycle.Unlock()

	c.state.Store(StateRefreshing)
	defer c.state.Store(StateIdle)

	started := c.now()

	token, err := c.fetcher.Login(ctx, c.creds)
	if err != nil {
		c.record(started, err)
		return &UpdateFailedError{Err: err}
	}

	snap := c.collect(ctx, token)
	if err := ctx.Err(); err != nil {
		// A cancelled cycle is not published, even if some floats made it.
		c.record(started, err)
		return &UpdateFailedError{Err: err}
	}

	c.data.Store(&snap)
	c.record(started, nil)
	c.logger.Debug("coordinator: snapshot published",
		"floats", len(snap), "took", c.now().Sub(started))
	return nil
}

// collect fetches every float and assembles the snapshot. Per-float failures
// leave that float with only its identity keys.
func (c *Coordinator) collect(ctx context.Context, token string) types.Snapshot {
	results := make([]types.Measurements, len(c.floats))

	if c.concurrency < 2 {
		for i, f := range c.floats {
			results[i] = c.fetchOne(ctx, token, f)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.concurrency)
		for i, f := range c.floats {
			i, f := i, f
			g.Go(func() error {
				results[i] = c.fetchOne(ctx, token, f)
				return nil
			})
		}
		_ = g.Wait()
	}

	snap := make(types.Snapshot, len(c.floats))
	for i, f := range c.floats {
		m := results[i]
		m[types.KeyID] = f.ID
		m[types.KeyName] = f.Name
		snap[f.ID] = m
	}
	return snap
}

func (c *Coordinator) fetchOne(ctx context.Context, token string, f types.Float) types.Measurements {
	m, err := c.fetcher.FetchFloatData(ctx, token, f.ID)
	if err != nil {
		c.logger.Warn("coordinator: float fetch failed, leaving it empty",
			"float_id", f.ID, "float", f.Name, "err", err)
		return make(types.Measurements, 2)
	}
	out := make(types.Measurements, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Status returns a summary of recent cycles.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:               c.State(),
		LastAttempt:         c.lastTry,
		LastSuccess:         c.lastOK,
		ConsecutiveFailures: c.failures,
		SuccessPct:          c.successPct(),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *Coordinator) record(at time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) >= historyWindow {
		c.history = c.history[1:]
	}
	c.history = append(c.history, err == nil)
	c.lastTry = at
	c.lastErr = err
	if err != nil {
		c.failures++
		return
	}
	c.failures = 0
	c.lastOK = at
}

// successPct is the share of successful cycles in the window, 100 before any.
func (c *Coordinator) successPct() float64 {
	if len(c.history) == 0 {
		return 100
	}
	var ok int
	for _, s := range c.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(c.history)) * 100
}
