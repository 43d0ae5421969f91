// Package enhance is the service facade callers talk to.
//
// It exposes submit, status, cancel, and history over the job registry and
// workflow manager without leaking pipeline or oracle internals. Admission
// failures surface synchronously at submit time; cancellation resolves the
// race with a finishing run through the registry's conditional transitions.
package enhance
