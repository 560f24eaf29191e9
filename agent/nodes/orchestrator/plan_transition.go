package orchestratornode

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
	toolx "github.com/tanpawarit/Chative-Voice-Qualification/agent/tool"
)

// PlanTransition asks the machine for the candidate phase and picks the
// capability the turn needs. The phase itself is committed later, once the
// capability outcome is known.
func PlanTransition(in *GraphState, machine *statex.Machine, catalog *toolx.Catalog, rec Recorder) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	candidate, err := machine.Next(statex.Input{
		Phase:     in.Conversation.Phase,
		Tier:      in.Assessment.Tier,
		Intent:    in.Intent,
		Signals:   in.Conversation.Signals,
		Requested: in.Requested,
	})
	if err != nil {
		if !errors.Is(err, statex.ErrPolicyViolation) {
			return nil, err
		}
		target := in.Requested
		if target == "" {
			target = candidate
		}
		reportViolation(in, target, err, rec)
	}
	in.Candidate = candidate

	capability, gating, err := selectCapability(in)
	if err != nil {
		reportViolation(in, in.Candidate, err, rec)
		in.Candidate = statex.PhaseDiscovery
		return in, nil
	}
	if capability == "" {
		return in, nil
	}
	if !catalog.Has(capability) {
		log.Debug().
			Str("conversation_id", in.ConversationID).
			Str("capability", capability).
			Msg("capability not configured, skipping")
		return in, nil
	}
	in.Capability = capability
	in.Gating = gating
	return in, nil
}

func reportViolation(in *GraphState, to statex.Phase, err error, rec Recorder) {
	in.Violation = err.Error()
	log.Warn().
		Err(err).
		Str("conversation_id", in.ConversationID).
		Str("from", string(in.Conversation.Phase)).
		Str("to", string(to)).
		Str("tier", string(in.Assessment.Tier)).
		Str("intent", string(in.Intent)).
		Msg("policy violation")
	rec.ObservePolicyViolation(string(in.Conversation.Phase), string(to))
}
