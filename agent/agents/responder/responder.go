package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	promptx "github.com/tanpawarit/Chative-Voice-Qualification/agent/prompt"
)

var _ contractx.Responder = (*Responder)(nil)

// Responder rewrites a templated draft into natural spoken text with a chat
// model. It never decides what to say, only how to say it.
type Responder struct {
	runner compose.Runnable[map[string]any, string]
}

// New builds a Responder. An empty systemPrompt uses the embedded default.
func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Responder, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = promptx.ResponderPrompt()
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: responder system prompt", contractx.ErrPromptMissing)
	}

	runner, err := compileResponderGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &Responder{runner: runner}, nil
}

func (r *Responder) Respond(ctx context.Context, req contractx.ResponderRequest) (string, error) {
	draft := strings.TrimSpace(req.Draft)
	if draft == "" {
		return "", fmt.Errorf("%w: draft reply is empty", contractx.ErrValidation)
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"utterance": strings.TrimSpace(req.Utterance),
		"phase":     string(req.Phase),
		"tier":      string(req.Tier),
		"intent":    string(req.Intent),
		"draft":     draft,
	})
	if err != nil {
		if errors.Is(err, contractx.ErrModelInvoke) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}
	return out, nil
}
