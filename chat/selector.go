package chat

import (
	"fmt"

	"github.com/calassist/calassist/agent"
	"github.com/calassist/calassist/core"
)

// selectSpeaker decides who talks next. Precedence:
//
//  1. A pending tool call routes to that tool's declared executor.
//  2. The previous speaker's handoff rules, first match wins.
//  3. The configured fallback policy.
func (s *Scheduler) selectSpeaker(transcript *core.Transcript) (agent.Agent, error) {
	if pending := transcript.PendingCalls(); len(pending) > 0 {
		call := pending[len(pending)-1]
		executor, err := s.registry.ExecutorFor(call.Name)
		if err != nil {
			return nil, fmt.Errorf("pending call %q has no registered tool: %w", call.Name, err)
		}
		a, ok := s.byName[executor]
		if !ok {
			return nil, fmt.Errorf("executor %q of tool %q is not in the roster", executor, call.Name)
		}
		return a, nil
	}

	last, ok := transcript.Last()
	if !ok {
		return s.byName[s.opts.Coordinator], nil
	}

	if prev, ok := s.byName[last.Speaker]; ok {
		for _, rule := range prev.Handoffs() {
			if rule.When == nil || rule.When(last) {
				target, ok := s.byName[rule.To]
				if !ok {
					return nil, fmt.Errorf("handoff target %q of %q is not in the roster", rule.To, prev.Name())
				}
				return target, nil
			}
		}
	}

	switch s.opts.Policy {
	case PolicyRoundRobin:
		return s.nextRoundRobin(last.Speaker)
	default:
		return s.nextAuto(last), nil
	}
}

// nextAuto implements the heuristic fallback: the coordinator answers the
// human, tool results and scheduler notices; a plain coordinator answer
// hands the floor back to the human proxy.
func (s *Scheduler) nextAuto(last core.Message) agent.Agent {
	if last.Role == core.RoleAssistant {
		for _, a := range s.roster {
			if a.AcceptsHumanInput() {
				return a
			}
		}
	}
	return s.byName[s.opts.Coordinator]
}

// nextRoundRobin cycles through the roster in declaration order, skipping
// the previous speaker unless repeats are allowed.
func (s *Scheduler) nextRoundRobin(lastSpeaker string) (agent.Agent, error) {
	lastIdx := -1
	for i, a := range s.roster {
		if a.Name() == lastSpeaker {
			lastIdx = i
			break
		}
	}
	next := s.roster[(lastIdx+1)%len(s.roster)]
	if next.Name() == lastSpeaker && !s.opts.AllowRepeatSpeaker {
		if len(s.roster) == 1 {
			return nil, fmt.Errorf("round robin cannot avoid repeating the only agent %q", lastSpeaker)
		}
		next = s.roster[(lastIdx+2)%len(s.roster)]
	}
	return next, nil
}
