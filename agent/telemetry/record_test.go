package telemetry

import (
	"testing"
	"time"

	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
)

func TestNewBreakerEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	ev := NewBreakerEvent(resiliencex.Transition{
		Dependency:          "meeting_booking",
		From:                resiliencex.StatusClosed,
		To:                  resiliencex.StatusOpen,
		ConsecutiveFailures: 3,
		At:                  at,
	})
	if ev.Dependency != "meeting_booking" || ev.From != "CLOSED" || ev.To != "OPEN" {
		t.Fatalf("NewBreakerEvent() = %+v", ev)
	}
	if ev.ConsecutiveFailures != 3 || !ev.At.Equal(at) {
		t.Fatalf("NewBreakerEvent() = %+v", ev)
	}
}
