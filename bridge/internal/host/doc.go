// Package host is the standalone host the bridge binary runs integrations in.
//
// Local keeps a thread-safe registry of entries (one per account) with their
// coordinator and sensors, and runs one fixed-interval refresh loop per
// entry. An update failure is logged and recorded on the entry; the sensors
// keep reading the last good snapshot. The REST API, /metrics and the
// websocket hub read from the registry.
package host
