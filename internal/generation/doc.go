// Package generation drives prompt-based video generation through an external
// service. Requests are submitted once and polled until the remote run reaches
// a terminal state or the overall timeout elapses.
package generation
