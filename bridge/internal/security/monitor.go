package security

import (
	"context"
	"crypto/tls"
	"log/slog"
	"sync/atomic"
	"time"
)

// Monitor periodically checks one endpoint. Safe for concurrent use.
type Monitor struct {
	endpoint atomic.Pointer[string]
	latest   atomic.Pointer[CertStatus]
	tls      *tls.Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewMonitor returns a Monitor for endpoint. tlsCfg may be nil.
func NewMonitor(endpoint string, tlsCfg *tls.Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{tls: tlsCfg, logger: logger, now: time.Now}
	m.endpoint.Store(&endpoint)
	return m
}

// SetEndpoint switches the endpoint for the next check.
func (m *Monitor) SetEndpoint(endpoint string) {
	m.endpoint.Store(&endpoint)
}

// Latest returns the most recent result, or nil before the first check or when
// the endpoint is not HTTPS.
func (m *Monitor) Latest() *CertStatus {
	return m.latest.Load()
}

// CheckNow runs one check and stores its result.
func (m *Monitor) CheckNow(ctx context.Context) *CertStatus {
	endpoint := *m.endpoint.Load()
	cs := Check(ctx, endpoint, m.tls, m.now())
	m.latest.Store(cs)
	switch {
	case cs == nil:
	case cs.Status == "valid":
		m.logger.Debug("security: certificate checked", "endpoint", endpoint, "days_left", cs.DaysLeft)
	default:
		m.logger.Warn("security: certificate needs attention",
			"endpoint", endpoint, "status", cs.Status, "days_left", cs.DaysLeft)
	}
	return cs
}

// Run checks immediately and then every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.CheckNow(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.CheckNow(ctx)
		}
	}
}
