package telemetry

import (
	"time"

	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
)

// TurnRecord summarises one processed caller turn.
type TurnRecord struct {
	ID              string           `json:"id"`
	ConversationID  string           `json:"conversation_id"`
	Turn            int              `json:"turn"`
	Intent          string           `json:"intent"`
	SignalsThisTurn []signalx.Update `json:"signals_this_turn,omitempty"`
	Signals         signalx.Set      `json:"signals"`
	Tier            string           `json:"tier"`
	Reasons         []string         `json:"reasons,omitempty"`
	PhaseBefore     string           `json:"phase_before"`
	Phase           string           `json:"phase"`
	Capability      string           `json:"capability,omitempty"`
	Outcome         string           `json:"outcome,omitempty"`
	Attempts        int              `json:"attempts,omitempty"`
	Violation       string           `json:"violation,omitempty"`
	Latency         time.Duration    `json:"latency"`
	At              time.Time        `json:"at"`
}

// BreakerEvent is a circuit breaker status change for one dependency.
type BreakerEvent struct {
	Dependency          string    `json:"dependency"`
	From                string    `json:"from"`
	To                  string    `json:"to"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	At                  time.Time `json:"at"`
}

func NewBreakerEvent(tr resiliencex.Transition) BreakerEvent {
	return BreakerEvent{
		Dependency:          tr.Dependency,
		From:                tr.From.String(),
		To:                  tr.To.String(),
		ConsecutiveFailures: tr.ConsecutiveFailures,
		At:                  tr.At,
	}
}
