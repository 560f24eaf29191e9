package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
	toolx "github.com/tanpawarit/Chative-Voice-Qualification/agent/tool"
)

// InvokeCapability runs the planned capability through the executor. A failed
// gating capability restores the conversation to its state just before the
// call. Cancellation aborts the turn.
func InvokeCapability(
	ctx context.Context,
	in *GraphState,
	catalog *toolx.Catalog,
	executor *resiliencex.Executor,
	rec Recorder,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if in.Capability == "" {
		return in, nil
	}

	entry, err := catalog.Get(in.Capability)
	if err != nil {
		return nil, err
	}

	snapshot := in.Conversation.Snapshot()
	req := contractx.CapabilityRequest{
		ConversationID: in.ConversationID,
		Utterance:      in.Utterance,
		Phase:          in.Candidate,
		Tier:           in.Assessment.Tier,
		Signals:        in.Conversation.Signals.Clone(),
		Turn:           in.Conversation.Turns + 1,
		Now:            in.Now,
	}

	res, err := executor.Do(ctx, in.Capability, entry.Policy, func(ctx context.Context) (any, error) {
		return entry.Capability.Invoke(ctx, req)
	})
	in.Attempts = len(res.Attempts)

	if err == nil {
		in.Outcome = statex.OutcomeSuccess
		if out, ok := res.Value.(contractx.CapabilityResult); ok {
			in.Result = out
		}
		rec.ObserveCapability(in.Capability, string(in.Outcome), in.Attempts)
		return in, nil
	}

	kind := resiliencex.KindOf(err)
	if kind == resiliencex.KindCanceled || ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrConversationEnded, err)
	}

	in.Outcome = outcomeFor(kind)
	rec.ObserveCapability(in.Capability, string(in.Outcome), in.Attempts)
	log.Warn().
		Err(err).
		Str("conversation_id", in.ConversationID).
		Str("dependency", in.Capability).
		Str("outcome", string(in.Outcome)).
		Int("attempt", in.Attempts).
		Bool("gating", in.Gating).
		Msg("capability failed")

	if in.Gating {
		in.Conversation.Restore(snapshot)
		in.FallbackKind = string(in.Outcome)
	}
	return in, nil
}

func outcomeFor(kind resiliencex.Kind) statex.ToolOutcome {
	switch kind {
	case resiliencex.KindUnavailable:
		return statex.OutcomeUnavailable
	case resiliencex.KindTimeout:
		return statex.OutcomeTimeout
	default:
		return statex.OutcomeFailed
	}
}
