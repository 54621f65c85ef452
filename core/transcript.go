package core

import "sync"

// Transcript is the ordered, append-only history of one logical conversation.
// It is safe for concurrent access.
//
// Contract:
//   - Messages are never reordered or rewritten once appended
//   - Messages returns a defensive copy to avoid external mutation
//   - PendingCalls pairs tool calls against later results; a call without a
//     matching result is pending
//   - Rewind exists solely so a superseded run can discard its partial
//     output under the "discard" supersede policy; it must never be used
//     mid-run
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript { return &Transcript{} }

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
}

// Len returns the number of messages recorded so far.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Messages returns a copy of the full message history.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message and true, or a zero Message and false
// when the transcript is empty.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// History returns the conversational subset (user, assistant, tool roles)
// suitable for building a model request. System notices are included so an
// agent can see narrated failures and react to them.
func (t *Transcript) History() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, 0, len(t.messages))
	for _, m := range t.messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleTool, RoleSystem:
			out = append(out, m)
		}
	}
	return out
}

// PendingCalls returns tool calls that do not yet have a matching result,
// in request order.
func (t *Transcript) PendingCalls() []ToolCall {
	t.mu.RLock()
	defer t.mu.RUnlock()

	answered := make(map[string]bool)
	for _, m := range t.messages {
		if m.Result != nil {
			answered[m.Result.CallID] = true
		}
	}

	var pending []ToolCall
	for _, m := range t.messages {
		for _, c := range m.Calls {
			if !answered[c.ID] {
				pending = append(pending, c)
			}
		}
	}
	return pending
}

// Rewind truncates the transcript back to n messages. Used only when a
// superseded run's partial output is being discarded.
func (t *Transcript) Rewind(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 || n >= len(t.messages) {
		return
	}
	t.messages = t.messages[:n]
}

// Reset clears the transcript. Used by single-shot sessions between runs.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
