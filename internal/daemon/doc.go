// Package daemon wires the job registry and workflow manager into a
// single-instance background process guarded by a file lock.
package daemon
