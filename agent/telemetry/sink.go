package telemetry

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Sink receives telemetry off the turn path.
type Sink interface {
	WriteTurn(ctx context.Context, rec TurnRecord) error
	WriteBreakerEvent(ctx context.Context, ev BreakerEvent) error
}

// LogSink writes records as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) WriteTurn(_ context.Context, rec TurnRecord) error {
	ev := s.logger.Info().
		Str("conversation_id", rec.ConversationID).
		Int("turn", rec.Turn).
		Str("intent", rec.Intent).
		Str("tier", rec.Tier).
		Strs("reasons", rec.Reasons).
		Str("phase_before", rec.PhaseBefore).
		Str("phase", rec.Phase).
		Int("signals_this_turn", len(rec.SignalsThisTurn)).
		Dur("latency", rec.Latency)
	if rec.Capability != "" {
		ev = ev.Str("capability", rec.Capability).Str("outcome", rec.Outcome).Int("attempts", rec.Attempts)
	}
	if rec.Violation != "" {
		ev = ev.Str("violation", rec.Violation)
	}
	ev.Msg("turn processed")
	return nil
}

func (s *LogSink) WriteBreakerEvent(_ context.Context, ev BreakerEvent) error {
	level := zerolog.InfoLevel
	if ev.To == "OPEN" {
		level = zerolog.WarnLevel
	}
	s.logger.WithLevel(level).
		Str("dependency", ev.Dependency).
		Str("from", ev.From).
		Str("to", ev.To).
		Int("consecutive_failures", ev.ConsecutiveFailures).
		Msg("circuit breaker transition")
	return nil
}

// MultiSink fans out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) WriteTurn(ctx context.Context, rec TurnRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteTurn(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) WriteBreakerEvent(ctx context.Context, ev BreakerEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteBreakerEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
