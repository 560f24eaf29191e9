package orchestratornode

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Qualification/agent/telemetry"
)

// Recorder receives per-turn measurements. *metrics.Metrics implements it.
type Recorder interface {
	ObserveTurn(phase, tier string, elapsed time.Duration)
	ObserveCapability(capability, outcome string, attempts int)
	ObservePolicyViolation(from, to string)
}

// TurnPublisher accepts turn records without blocking.
// *telemetry.Dispatcher implements it.
type TurnPublisher interface {
	PublishTurn(rec telemetry.TurnRecord) bool
}

type NoopRecorder struct{}

func (NoopRecorder) ObserveTurn(string, string, time.Duration) {}
func (NoopRecorder) ObserveCapability(string, string, int) {}
func (NoopRecorder) ObservePolicyViolation(string, string) {}

type NoopPublisher struct{}

func (NoopPublisher) PublishTurn(telemetry.TurnRecord) bool { return true }

func EmitRecord(in *GraphState, publisher TurnPublisher, rec Recorder, nowFn func() time.Time) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	elapsed := nowFn().Sub(in.Started)
	rec.ObserveTurn(string(in.Conversation.Phase), string(in.Assessment.Tier), elapsed)

	publisher.PublishTurn(telemetry.TurnRecord{
		ID:              uuid.NewString(),
		ConversationID:  in.ConversationID,
		Turn:            in.Conversation.Turns,
		Intent:          string(in.Intent),
		SignalsThisTurn: in.Updates,
		Signals:         in.Conversation.Signals.Clone(),
		Tier:            string(in.Assessment.Tier),
		Reasons:         in.Assessment.Reasons,
		PhaseBefore:     string(in.PhaseBefore),
		Phase:           string(in.Conversation.Phase),
		Capability:      in.Capability,
		Outcome:         string(in.Outcome),
		Attempts:        in.Attempts,
		Violation:       in.Violation,
		Latency:         elapsed,
		At:              in.Now,
	})
	return in, nil
}
