package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

// ApplyTransition commits the phase for this turn. After a failed gating
// capability the machine is consulted again with the failure outcome, which
// pins the current phase.
func ApplyTransition(in *GraphState, machine *statex.Machine) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	if in.Gating && in.Outcome.Failed() {
		next, err := machine.Next(statex.Input{
			Phase:       in.Conversation.Phase,
			Tier:        in.Assessment.Tier,
			Intent:      in.Intent,
			LastOutcome: in.Outcome,
			Signals:     in.Conversation.Signals,
		})
		if err != nil {
			return nil, err
		}
		in.Conversation.Phase = next
		return in, nil
	}

	in.Conversation.Phase = in.Candidate
	return in, nil
}
