// Package ws implements the websocket stream of the bridge.
//
// Hub keeps the set of connected clients and pushes the snapshot of every
// registered account to all of them on a fixed interval (default 5s).
//
// New(host, interval, logger) creates a Hub. Hub.Run(ctx) drives the
// broadcast ticker until ctx is cancelled, then closes every connection.
// Hub.Notify, hooked to host.Local.OnRefresh, broadcasts as soon as an account
// has refreshed instead of waiting for the tick.
// Hub.ServeHTTP upgrades the request, sends the current snapshot right away
// and then streams one message per tick.
//
// Message format:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// All origins are accepted. The endpoint is mounted at /ws/stream.
package ws
