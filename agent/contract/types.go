package contract

import (
	"time"

	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

const (
	CapabilityKnowledgeSearch    = "knowledge_search"
	CapabilityMeetingBooking     = "meeting_booking"
	CapabilityCRMWebhook         = "crm_webhook"
	DependencyResponseGeneration = "response_generation"
)

type CapabilityRequest struct {
	ConversationID string        `json:"conversation_id"`
	Utterance      string        `json:"utterance"`
	Phase          statex.Phase  `json:"phase"`
	Tier           qualifyx.Tier `json:"tier"`
	Signals        signalx.Set   `json:"signals"`
	// Turn is the 1-based turn that issued the request. Retries of one turn
	// share it.
	Turn int       `json:"turn"`
	Now  time.Time `json:"now"`
}

type CapabilityResult struct {
	Capability string `json:"capability"`
	// Answer is caller-facing text from a lookup.
	Answer string `json:"answer,omitempty"`
	// Reference identifies what the capability created (booking id, message id).
	Reference   string    `json:"reference,omitempty"`
	MeetingTime time.Time `json:"meeting_time,omitzero"`
}

type ResponderRequest struct {
	ConversationID string         `json:"conversation_id"`
	Utterance      string         `json:"utterance"`
	Phase          statex.Phase   `json:"phase"`
	Tier           qualifyx.Tier  `json:"tier"`
	Intent         signalx.Intent `json:"intent"`
	Draft          string         `json:"draft"`
}
