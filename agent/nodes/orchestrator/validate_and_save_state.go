package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

// ValidateAndSaveState persists the conversation unless the turn was
// canceled, so a hung-up conversation is never written again.
func ValidateAndSaveState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrConversationEnded, err)
	}

	in.Conversation.Turns++
	in.Conversation.Touch(in.Now)
	if err := in.Conversation.Validate(); err != nil {
		return nil, fmt.Errorf("conversation validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Conversation); err != nil {
		return nil, err
	}
	return in, nil
}
