package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
	"github.com/tanpawarit/Chative-Voice-Qualification/pkg/qstash"
)

// CRMConfig is read from CRM_* variables. Destination is the CRM webhook
// QStash delivers the lead to.
type CRMConfig struct {
	Destination string                    `split_words:"true"`
	Retry       resiliencex.Policy        `split_words:"true"`
	Breaker     resiliencex.BreakerConfig `split_words:"true"`
}

// Publisher is satisfied by *qstash.Client.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte, headers map[string]string) (string, error)
}

type leadRecord struct {
	ConversationID string      `json:"conversation_id"`
	Tier           string      `json:"tier"`
	Phase          string      `json:"phase"`
	Signals        signalx.Set `json:"signals"`
	ClosedAt       time.Time   `json:"closed_at"`
}

// CRMWebhook logs a qualified lead at the end of a conversation.
type CRMWebhook struct {
	destination string
	publisher   Publisher
}

func NewCRMWebhook(cfg CRMConfig, publisher Publisher) (*CRMWebhook, error) {
	destination := strings.TrimSpace(cfg.Destination)
	if destination == "" {
		return nil, errors.New("crm destination is required")
	}
	if publisher == nil {
		return nil, errors.New("crm publisher is required")
	}
	return &CRMWebhook{destination: destination, publisher: publisher}, nil
}

func (c *CRMWebhook) Name() string {
	return contractx.CapabilityCRMWebhook
}

func (c *CRMWebhook) Invoke(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	body, err := json.Marshal(leadRecord{
		ConversationID: req.ConversationID,
		Tier:           string(req.Tier),
		Phase:          string(req.Phase),
		Signals:        req.Signals,
		ClosedAt:       req.Now.UTC(),
	})
	if err != nil {
		return contractx.CapabilityResult{}, resiliencex.Permanent(err)
	}

	id, err := c.publisher.Publish(ctx, c.destination, body, map[string]string{
		"X-Conversation-Id": req.ConversationID,
	})
	if err != nil {
		var se *qstash.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return contractx.CapabilityResult{}, resiliencex.Permanent(err)
		}
		return contractx.CapabilityResult{}, err
	}

	return contractx.CapabilityResult{Capability: c.Name(), Reference: id}, nil
}
