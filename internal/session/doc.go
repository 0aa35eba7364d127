// Package session groups the trackers of one tracked program run.
//
// A Session hands out one probe.Tracker per managed thread, each with its
// own transport, and stamps recorded exchanges from a shared logical clock.
// Session IDs are time-sortable UUIDv7 strings unless a fixed generator is
// injected for tests.
package session
