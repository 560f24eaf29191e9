package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

func LoadOrCreateConversation(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	conv, err := loadOrCreateConversation(ctx, store, in.ConversationID, in.Now)
	if err != nil {
		return nil, err
	}
	if conv.Phase.Terminal() {
		return nil, fmt.Errorf("%w: %s", contractx.ErrConversationEnded, in.ConversationID)
	}

	in.Conversation = conv
	in.PhaseBefore = conv.Phase
	return in, nil
}

func loadOrCreateConversation(ctx context.Context, store statex.Store, conversationID string, now time.Time) (*statex.Conversation, error) {
	conv, err := store.Load(ctx, conversationID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, err
	}
	return statex.NewConversation(conversationID, now), nil
}
