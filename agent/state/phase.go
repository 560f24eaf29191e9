package state

import (
	"errors"
	"slices"
)

type Phase string

const (
	PhaseGreeting       Phase = "GREETING"
	PhaseDiscovery      Phase = "DISCOVERY"
	PhaseValueDemo      Phase = "VALUE_DEMO"
	PhaseQualification  Phase = "QUALIFICATION"
	PhaseNextSteps      Phase = "NEXT_STEPS"
	PhaseFrictionRescue Phase = "FRICTION_RESCUE"
	PhaseClosing        Phase = "CLOSING"
)

var phases = []Phase{
	PhaseGreeting,
	PhaseDiscovery,
	PhaseValueDemo,
	PhaseQualification,
	PhaseNextSteps,
	PhaseFrictionRescue,
	PhaseClosing,
}

func Phases() []Phase {
	return slices.Clone(phases)
}

func (p Phase) Valid() bool {
	return slices.Contains(phases, p)
}

func (p Phase) Terminal() bool {
	return p == PhaseClosing
}

// ToolOutcome is the result of the capability invoked during a turn, as seen
// by the transition function.
type ToolOutcome string

const (
	OutcomeNone        ToolOutcome = ""
	OutcomeSuccess     ToolOutcome = "success"
	OutcomeUnavailable ToolOutcome = "unavailable"
	OutcomeFailed      ToolOutcome = "failed"
	OutcomeTimeout     ToolOutcome = "timeout"
)

func (o ToolOutcome) Failed() bool {
	switch o {
	case OutcomeUnavailable, OutcomeFailed, OutcomeTimeout:
		return true
	default:
		return false
	}
}

var (
	ErrPolicyViolation     = errors.New("policy violation")
	ErrInvalidPhase        = errors.New("invalid phase")
	ErrStateNotFound       = errors.New("conversation state not found")
	ErrNilConversation     = errors.New("conversation is nil")
	ErrInvalidConversation = errors.New("conversation id is empty")
)
