package core

// RunStatus is the terminal status of one dispatch run, relayed to the
// transport so the user can tell how the conversation ended.
type RunStatus string

const (
	// StatusCompleted means an agent signalled normal completion.
	StatusCompleted RunStatus = "completed"
	// StatusRoundLimit means the configured round cap was reached.
	StatusRoundLimit RunStatus = "round_limit_reached"
	// StatusAborted means the run was cancelled (disconnect, supersede) or
	// forcibly terminated by the anti-starvation rule.
	StatusAborted RunStatus = "aborted"
)
