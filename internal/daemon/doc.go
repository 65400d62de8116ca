// Package daemon wires the workflow manager, run registry, and HTTP API into
// a single-instance background service.
package daemon
