package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

var (
	ErrInvalidMessage      = errors.New("utterance is empty")
	ErrInvalidConversation = errors.New("conversation id is empty")
)

type GraphInput struct {
	ConversationID string
	Utterance      string
	RequestedPhase statex.Phase
}

// GraphOutput is what the host receives for one turn.
type GraphOutput struct {
	ConversationID string             `json:"conversation_id"`
	Reply          string             `json:"reply"`
	Phase          statex.Phase       `json:"phase"`
	Tier           qualifyx.Tier      `json:"tier"`
	Reasons        []string           `json:"reasons,omitempty"`
	Intent         signalx.Intent     `json:"intent"`
	Capability     string             `json:"capability,omitempty"`
	Outcome        statex.ToolOutcome `json:"outcome,omitempty"`
	Ended          bool               `json:"ended"`
}

type GraphState struct {
	ConversationID string
	Utterance      string
	Requested      statex.Phase
	Now            time.Time
	Started        time.Time

	Conversation *statex.Conversation
	PhaseBefore  statex.Phase

	Intent     signalx.Intent
	Updates    []signalx.Update
	Assessment qualifyx.Assessment

	Candidate statex.Phase
	Violation string

	Capability string
	Gating     bool
	Result     contractx.CapabilityResult
	Outcome    statex.ToolOutcome
	Attempts   int

	FallbackKind string
	Reply        string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidConversation)
	}

	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}

	if in.RequestedPhase != "" && !in.RequestedPhase.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", contractx.ErrValidation, statex.ErrInvalidPhase, in.RequestedPhase)
	}

	now := nowFn().UTC()
	return &GraphState{
		ConversationID: conversationID,
		Utterance:      utterance,
		Requested:      in.RequestedPhase,
		Now:            now,
		Started:        now,
	}, nil
}
