package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

// selectCapability maps the planned turn to at most one capability.
// Gating capabilities must succeed for the candidate phase to be committed.
func selectCapability(in *GraphState) (string, bool, error) {
	current := in.Conversation.Phase

	switch {
	case in.Candidate == statex.PhaseNextSteps && current != statex.PhaseNextSteps:
		// Booking is re-checked against the tier even though the machine
		// guards the edge.
		if in.Assessment.Tier != qualifyx.TierSalesReady {
			return "", false, fmt.Errorf("%w: booking requested with tier %s", contractx.ErrPolicyViolation, in.Assessment.Tier)
		}
		return contractx.CapabilityMeetingBooking, true, nil

	case in.Candidate == statex.PhaseClosing && current != statex.PhaseClosing:
		if in.Assessment.Tier == qualifyx.TierSelfServe {
			return "", false, nil
		}
		return contractx.CapabilityCRMWebhook, false, nil

	case in.Intent == signalx.IntentQuestion:
		return contractx.CapabilityKnowledgeSearch, true, nil
	}
	return "", false, nil
}
