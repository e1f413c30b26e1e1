package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"
)

const dialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate served by an endpoint.
type CertStatus struct {
	Endpoint  string `json:"endpoint"`
	Status    string `json:"status"` // valid | expiring | expired | unreachable
	Issuer    string `json:"issuer,omitempty"`
	NotAfter  string `json:"not_after,omitempty"` // RFC3339
	DaysLeft  int    `json:"days_left"`
	CheckedAt string `json:"checked_at"` // RFC3339
}

// Check dials endpoint and returns its certificate status. It returns nil for
// non-HTTPS endpoints. cfg may be nil; the system roots are used then.
func Check(ctx context.Context, endpoint string, cfg *tls.Config, now time.Time) *CertStatus {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{Endpoint: endpoint, CheckedAt: now.UTC().Format(time.RFC3339)}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: cfg}
	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = "expired"
	case daysLeft <= 30:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}
	return cs
}
