package state

import (
	"fmt"

	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
)

// Input is everything the transition function looks at for one turn.
type Input struct {
	Phase       Phase
	Tier        qualifyx.Tier
	Intent      signalx.Intent
	LastOutcome ToolOutcome
	Signals     signalx.Set
	// Requested is an explicit target asked for by a collaborator. It is
	// validated against the edge table like any computed target.
	Requested Phase
}

type guard func(Input) bool

type branch struct {
	to   Phase
	when guard
}

type ruleKey struct {
	phase  Phase
	intent signalx.Intent
}

// anyIntent rows apply after the intent-specific row found no branch.
const anyIntent signalx.Intent = "*"

func always(Input) bool { return true }

func tierIs(t qualifyx.Tier) guard {
	return func(in Input) bool { return in.Tier == t }
}

func tierIsNot(t qualifyx.Tier) guard {
	return func(in Input) bool { return in.Tier != t }
}

type MachineOption func(*Machine)

// WithDiscoveryThreshold sets how many distinct signals must be known before
// discovery moves on to the value demo.
func WithDiscoveryThreshold(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.discoveryThreshold = n
		}
	}
}

// Machine is the conversation phase transition function. It is a pure value;
// one instance serves every conversation.
type Machine struct {
	rules              map[ruleKey][]branch
	edges              map[Phase][]Phase
	guards             map[Phase]guard
	holds              map[Phase]guard
	discoveryThreshold int
}

func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{discoveryThreshold: 2}
	for _, opt := range opts {
		opt(m)
	}

	enoughSignals := func(in Input) bool { return countSignals(in.Signals) >= m.discoveryThreshold }

	m.edges = map[Phase][]Phase{
		PhaseGreeting:       {PhaseDiscovery, PhaseFrictionRescue, PhaseClosing},
		PhaseDiscovery:      {PhaseValueDemo, PhaseQualification, PhaseFrictionRescue, PhaseClosing},
		PhaseValueDemo:      {PhaseQualification, PhaseFrictionRescue, PhaseClosing},
		PhaseQualification:  {PhaseNextSteps, PhaseValueDemo, PhaseFrictionRescue, PhaseClosing},
		PhaseNextSteps:      {PhaseQualification, PhaseClosing},
		PhaseFrictionRescue: {PhaseDiscovery, PhaseValueDemo, PhaseClosing},
		PhaseClosing:        {},
	}

	// Entry guards hold no matter how a target was chosen.
	m.guards = map[Phase]guard{
		PhaseNextSteps: func(in Input) bool {
			return in.Tier == qualifyx.TierSalesReady && in.Intent == signalx.IntentRequestNextStep
		},
	}

	// Hold guards apply when a phase is kept for another turn.
	m.holds = map[Phase]guard{
		PhaseNextSteps: tierIs(qualifyx.TierSalesReady),
	}

	m.rules = map[ruleKey][]branch{
		{PhaseGreeting, signalx.IntentFrustration}: {{PhaseFrictionRescue, always}},
		{PhaseGreeting, signalx.IntentEndCall}:     {{PhaseClosing, always}},
		{PhaseGreeting, anyIntent}:                 {{PhaseDiscovery, always}},

		{PhaseDiscovery, signalx.IntentFrustration}: {{PhaseFrictionRescue, always}},
		{PhaseDiscovery, signalx.IntentEndCall}:     {{PhaseClosing, always}},
		{PhaseDiscovery, anyIntent}: {
			{PhaseQualification, tierIsNot(qualifyx.TierSelfServe)},
			{PhaseValueDemo, enoughSignals},
		},

		{PhaseValueDemo, signalx.IntentFrustration}: {{PhaseFrictionRescue, always}},
		{PhaseValueDemo, signalx.IntentEndCall}:     {{PhaseClosing, always}},
		{PhaseValueDemo, anyIntent}:                 {{PhaseQualification, tierIsNot(qualifyx.TierSelfServe)}},

		{PhaseQualification, signalx.IntentRequestNextStep}: {{PhaseNextSteps, tierIs(qualifyx.TierSalesReady)}},
		{PhaseQualification, signalx.IntentFrustration}:     {{PhaseFrictionRescue, always}},
		{PhaseQualification, signalx.IntentEndCall}:         {{PhaseClosing, always}},
		{PhaseQualification, anyIntent}:                     {{PhaseValueDemo, tierIs(qualifyx.TierSelfServe)}},

		{PhaseNextSteps, signalx.IntentEndCall}: {{PhaseClosing, always}},
		{PhaseNextSteps, anyIntent}:             {{PhaseQualification, tierIsNot(qualifyx.TierSalesReady)}},

		{PhaseFrictionRescue, signalx.IntentEndCall}:     {{PhaseClosing, always}},
		{PhaseFrictionRescue, signalx.IntentFrustration}: {{PhaseFrictionRescue, always}},
		{PhaseFrictionRescue, anyIntent}: {
			{PhaseValueDemo, enoughSignals},
			{PhaseDiscovery, always},
		},
	}

	return m
}

// Next returns the phase for the coming turn.
//
// A failed capability outcome pins the current phase. An explicit request or
// a computed target that breaks the edge table or an entry guard is rejected:
// the result is DISCOVERY together with an error wrapping ErrPolicyViolation.
// CLOSING is terminal and never left.
func (m *Machine) Next(in Input) (Phase, error) {
	if !in.Phase.Valid() {
		return PhaseDiscovery, fmt.Errorf("%w: %w: %q", ErrPolicyViolation, ErrInvalidPhase, in.Phase)
	}
	if in.Phase.Terminal() {
		if in.Requested != "" && in.Requested != in.Phase {
			return in.Phase, m.violation(in, in.Requested)
		}
		return in.Phase, nil
	}
	if in.LastOutcome.Failed() {
		return in.Phase, nil
	}

	target := in.Phase
	if in.Requested != "" {
		target = in.Requested
	} else if to, ok := m.lookup(in); ok {
		target = to
	}

	if target == in.Phase {
		if h, ok := m.holds[target]; ok && !h(in) {
			return PhaseDiscovery, m.violation(in, target)
		}
		return target, nil
	}
	if !m.admits(in, target) {
		return PhaseDiscovery, m.violation(in, target)
	}
	return target, nil
}

// Allowed reports whether the edge table contains from -> to. Entry guards
// are not consulted.
func (m *Machine) Allowed(from, to Phase) bool {
	for _, p := range m.edges[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Targets lists the phases reachable from p.
func (m *Machine) Targets(p Phase) []Phase {
	out := make([]Phase, len(m.edges[p]))
	copy(out, m.edges[p])
	return out
}

func (m *Machine) lookup(in Input) (Phase, bool) {
	for _, intent := range []signalx.Intent{in.Intent, anyIntent} {
		for _, b := range m.rules[ruleKey{in.Phase, intent}] {
			if b.when(in) {
				return b.to, true
			}
		}
	}
	return "", false
}

func (m *Machine) admits(in Input, to Phase) bool {
	if !to.Valid() || !m.Allowed(in.Phase, to) {
		return false
	}
	if g, ok := m.guards[to]; ok && !g(in) {
		return false
	}
	return true
}

func (m *Machine) violation(in Input, to Phase) error {
	return fmt.Errorf("%w: %s -> %s rejected (tier=%s intent=%s)", ErrPolicyViolation, in.Phase, to, in.Tier, in.Intent)
}

func countSignals(s signalx.Set) int {
	n := 0
	if s.TeamSize != nil {
		n++
	}
	if s.MonthlyVolume != nil {
		n++
	}
	if len(s.IntegrationNeeds) > 0 {
		n++
	}
	if s.Urgency != signalx.UrgencyUnset {
		n++
	}
	if s.Industry != "" {
		n++
	}
	if len(s.PainPoints) > 0 {
		n++
	}
	return n
}
