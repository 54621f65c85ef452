// Package runner manages the lifecycle of dispatch runs: one run per inbound
// human message, at most one active run per session. It starts the scheduler
// in a goroutine, streams produced messages out on a channel, notifies the
// memory adapter of every exchange, and implements the supersede rule that
// lets a new inbound message cancel the run still in flight.
package runner
