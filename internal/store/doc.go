// Package store keeps the exchange log: every command the tracker sent to
// the symbolic executor and the response it got back, in SQLite.
//
// A session row describes one tracked run (its ID, pointer width and
// scenario). Exchange rows are keyed by (session, seq), where seq comes from
// the session's logical clock and is shared by all of its threads, so reads
// return exchanges in the order they happened. Writing an existing
// (session, seq) again is a no-op.
//
// Databases run in WAL mode with a 5s busy timeout and foreign keys on.
// Schema upgrades are tracked in PRAGMA user_version.
package store
