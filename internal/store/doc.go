// Package store provides durable storage for simulation firing logs.
//
// A session row pins the content hash of the graph being simulated; firing
// rows record, in sequence order, which event fired. Replaying the firings
// against a graph with the same hash deterministically reconstructs the
// marking. SQLite with WAL mode backs the log; writes are idempotent via
// INSERT ... ON CONFLICT DO NOTHING so re-recording a firing is harmless.
package store
