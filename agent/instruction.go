package agent

import "github.com/calassist/calassist/internal/prompt"

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from configuration, environment, etc.
type Provider interface {
	Instruction(turn Turn) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(turn Turn) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(turn Turn) (string, error) { return f(turn) }

// Instruction represents either a static instruction string or a dynamic
// provider. This mirrors a union of string | provider in a Go-idiomatic way.
//
// The placeholder {context} is substituted with the turn's recalled memory
// every time the instruction is resolved, so long-term context stays fresh
// across turns.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(turn Turn) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text with the {context} placeholder filled
// from the turn's memory context, invoking the provider if needed.
func (i Instruction) Resolve(turn Turn) (string, error) {
	text := i.text
	if i.provider != nil {
		resolved, err := i.provider.Instruction(turn)
		if err != nil {
			return "", err
		}
		text = resolved
	}
	return prompt.Render(text, map[string]string{"context": turn.MemoryContext}), nil
}
