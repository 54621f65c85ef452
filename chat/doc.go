// Package chat implements the turn-taking scheduler at the heart of the
// assistant: a group chat manager that repeatedly selects the next speaker
// from the agent roster, lets it produce one message, appends that message to
// the session transcript and decides whether the conversation is finished.
//
// Selection is deterministic where it matters. A pending tool call always
// routes to the tool's declared executor; otherwise the previous speaker's
// handoff rules are consulted in order; only when neither applies does the
// configured fallback policy (auto or round robin) pick a speaker.
//
// Failures never crash a session. Recoverable errors are narrated back into
// the transcript so agents can react, and a speaker that fails twice in a row
// with the identical error aborts the run instead of looping forever.
package chat
