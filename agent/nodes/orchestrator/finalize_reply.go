package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	promptx "github.com/tanpawarit/Chative-Voice-Qualification/agent/prompt"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

const meetingTimeLayout = "Monday, January 2 at 3:04 PM"

// Rephraser pairs an optional responder with the retry policy of its call site.
type Rephraser struct {
	Responder contractx.Responder
	Policy    resiliencex.Policy
}

// ComposeReply picks the templated reply for the turn and, when a responder
// is configured, lets it rephrase the draft. Fallback replies are never
// rephrased; any responder failure keeps the draft.
func ComposeReply(
	ctx context.Context,
	in *GraphState,
	book *promptx.ReplyBook,
	rephraser *Rephraser,
	executor *resiliencex.Executor,
) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	if in.FallbackKind != "" {
		idx := in.Conversation.NextFallback(in.FallbackKind, book.FallbackSize(in.FallbackKind))
		in.Reply = book.Fallback(in.FallbackKind, idx)
		return in, nil
	}

	draft := draftReply(in, book)
	in.Reply = draft
	if rephraser == nil || rephraser.Responder == nil || in.Conversation.Phase.Terminal() {
		return in, nil
	}

	res, err := executor.Do(ctx, contractx.DependencyResponseGeneration, rephraser.Policy, func(ctx context.Context) (any, error) {
		return rephraser.Responder.Respond(ctx, contractx.ResponderRequest{
			ConversationID: in.ConversationID,
			Utterance:      in.Utterance,
			Phase:          in.Conversation.Phase,
			Tier:           in.Assessment.Tier,
			Intent:         in.Intent,
			Draft:          draft,
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", contractx.ErrConversationEnded, ctx.Err())
		}
		log.Debug().Err(err).Str("conversation_id", in.ConversationID).Msg("responder failed, keeping draft")
		return in, nil
	}
	if text, ok := res.Value.(string); ok && strings.TrimSpace(text) != "" {
		in.Reply = strings.TrimSpace(text)
	}
	return in, nil
}

func draftReply(in *GraphState, book *promptx.ReplyBook) string {
	if in.Outcome == statex.OutcomeSuccess {
		switch in.Capability {
		case contractx.CapabilityMeetingBooking:
			if !in.Result.MeetingTime.IsZero() {
				return promptx.Render(book.BookingConfirmed, map[string]string{
					"meeting_time": in.Result.MeetingTime.Format(meetingTimeLayout),
				})
			}
		case contractx.CapabilityKnowledgeSearch:
			if in.Result.Answer != "" {
				return promptx.Render(book.KnowledgeAnswer, map[string]string{"answer": in.Result.Answer})
			}
		}
	}

	if in.Intent == signalx.IntentRequestNextStep && in.Assessment.Tier == qualifyx.TierSelfServe && !in.Conversation.Phase.Terminal() {
		return strings.TrimSpace(book.SelfServe)
	}
	return book.Phase(string(in.Conversation.Phase))
}

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Conversation == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: empty reply for phase %s", contractx.ErrValidation, in.Conversation.Phase)
	}
	return GraphOutput{
		ConversationID: in.ConversationID,
		Reply:          reply,
		Phase:          in.Conversation.Phase,
		Tier:           in.Assessment.Tier,
		Reasons:        in.Assessment.Reasons,
		Intent:         in.Intent,
		Capability:     in.Capability,
		Outcome:        in.Outcome,
		Ended:          in.Conversation.Phase.Terminal(),
	}, nil
}
