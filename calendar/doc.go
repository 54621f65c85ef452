// Package calendar defines the calendar backend boundary: event payload
// types, the Client interface the tool layer drives, an in-memory client for
// tests and development, and a circuit breaker wrapper for flaky backends.
// The Google Calendar implementation lives in the google sub-package.
package calendar
