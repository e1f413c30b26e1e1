// Package types defines the shared Go types passed between the scraper,
// the refresh coordinator and the metric surfaces. These are the canonical
// in-memory representations of float readings.
package types
