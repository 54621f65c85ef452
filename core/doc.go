// Package core defines the shared conversation types used across the
// assistant: messages, the append-only transcript, and the per-connection
// session. Higher layers (chat scheduler, runner, transport bridge) build on
// these without depending on each other.
package core
