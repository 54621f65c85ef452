// Package memory provides the best-effort long-term memory layer. An Adapter
// recalls prior context before a run starts and records every exchanged
// message afterwards; both operations swallow backend failures, because
// memory must never break a conversation.
package memory
