// Package api implements the HTTP surfaces of the bridge.
//
// New(host, opts...) returns an http.Handler that serves:
//
//	GET /api/v1/health          overall state and entry/sensor/alert counts
//	GET /api/v1/entries         one item per account with refresh status
//	GET /api/v1/floats          every float with its entry
//	GET /api/v1/sensors         every sensor with metadata and state
//	GET /api/v1/sensors/{id}    one sensor by unique ID; 404 if unknown
//	GET /api/v1/alerts          firing alerts and those resolved in the last hour
//	GET /api/v1/certs           TLS certificate status of the service endpoint
//	GET /api/v1/snapshot        latest snapshot of every entry + generated_at
//	GET /metrics                Prometheus text exposition
//
// Alerts and certificates come from the optional WithAlerts and WithCerts
// sources and are empty without them. All /api/v1 endpoints respond with application/json and return 405 for
// non-GET methods. JSON types are defined in types.go; the exposition is built
// in metrics.go.
package api
