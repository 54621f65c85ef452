// Package agent defines the conversation participants the scheduler
// orchestrates: model-backed assistants, the deterministic tool executor and
// the human proxy. Each agent produces at most one transcript message per
// turn; who speaks next is the scheduler's decision, steered by the ordered
// handoff rules an agent declares.
package agent
