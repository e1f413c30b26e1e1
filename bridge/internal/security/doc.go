// Package security inspects the TLS certificate of the Brew Brain endpoint.
//
// Check dials the endpoint once and reports the leaf certificate. Monitor runs
// Check on an interval and keeps the latest result for the API and /metrics.
package security
