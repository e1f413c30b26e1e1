// Package coordinator runs the refresh cycle for one Brew Brain account.
//
// Each Refresh logs in again, fetches every float known since setup and
// builds a new Snapshot. The snapshot is published with a single atomic swap
// once the whole cycle is done, so readers never see a half-built cycle. A
// failed login aborts the cycle with *UpdateFailedError and the previous
// snapshot stays in place. A failed float only empties that float's entry.
//
// Status keeps a rolling window of cycle outcomes for the success percentage,
// plus the consecutive failure count and last error.
package coordinator
