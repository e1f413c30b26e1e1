// Package integration wires one Brew Brain account into a host.
//
// The host is abstracted behind the Host capability interface so nothing here
// depends on a specific runtime: Setup registers sensors and asks the host to
// schedule refreshes, Unload asks it to stop and forget them. host.Local is the
// standalone implementation used by the bridge binary.
//
// Setup order mirrors what the service needs: log in, discover floats once,
// build the coordinator, run the first refresh, and only then register
// sensors. Any failure before registration aborts setup with nothing
// registered.
//
// Manager keeps the running entries in line with the configured accounts.
package integration
