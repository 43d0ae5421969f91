// Package jobs persists enhancement job records and enforces their lifecycle.
//
// The registry is backed by SQLite and is the single source of truth for job
// state. Every transition is a conditional update keyed on the current status,
// so concurrent workers and user-facing cancel/retry requests race safely: one
// writer wins, the rest observe ErrIllegalTransition. Admission limits are
// checked inside the same transaction that inserts a new record, so a rejected
// submission leaves no row behind.
package jobs
