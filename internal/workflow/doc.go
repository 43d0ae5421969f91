// Package workflow drives job records through their lifecycle.
//
// The manager runs a bounded pool of workers. Each worker claims the oldest
// pending job via a compare-and-swap transition, dispatches it to the runner
// registered for its kind, and persists the outcome. Per-job cancel functions
// let a user-facing cancel interrupt a run that is already processing. A
// background loop sweeps old terminal records, and stuck processing rows are
// reset to pending at startup so a crashed daemon never strands admission
// slots.
package workflow
