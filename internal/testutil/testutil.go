// Package testutil holds small builders shared by package tests.
package testutil

import (
	"github.com/calassist/calassist/core"
)

// Session returns a multi-turn session with the "keep" supersede policy.
func Session(user string) *core.Session {
	return core.NewSession(user, core.ModeMultiTurn, core.SupersedeKeep)
}

// Transcript builds a transcript from the given messages.
func Transcript(msgs ...core.Message) *core.Transcript {
	t := core.NewTranscript()
	for _, m := range msgs {
		t.Append(m)
	}
	return t
}

// UserText builds a user message outside any run.
func UserText(text string) core.Message {
	return core.NewUserMessage("", text)
}

// AssistantText builds a plain assistant message.
func AssistantText(speaker, text string) core.Message {
	return core.NewAgentMessage(speaker, text)
}

// CallRequest builds an assistant message carrying a single tool call.
func CallRequest(speaker, callID, toolName, args string) core.Message {
	return core.NewAgentMessage(speaker, "", core.ToolCall{
		ID:        callID,
		Name:      toolName,
		Arguments: args,
	})
}

// CallResult builds the tool result answering CallRequest.
func CallResult(speaker, callID, toolName string, value any) core.Message {
	return core.NewToolResultMessage(speaker, callID, toolName, value, nil)
}
