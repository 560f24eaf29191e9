package resilience

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func trip(b *Breaker) {
	for i := 0; i < b.Config().FailureThreshold; i++ {
		b.OnFailure()
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBreaker("knowledge_search", BreakerConfig{FailureThreshold: 3, RecoveryTimeout: 30 * time.Second}, WithClock(clock.Now))

	b.OnFailure()
	b.OnFailure()
	if got := b.Status(); got != StatusClosed {
		t.Fatalf("Status() after 2 failures = %s, want CLOSED", got)
	}
	b.OnFailure()
	if got := b.Status(); got != StatusOpen {
		t.Fatalf("Status() after 3 failures = %s, want OPEN", got)
	}
	if b.Allow() {
		t.Fatal("Allow() = true on open breaker")
	}

	st := b.Stats()
	if st.ConsecutiveFailures != 3 || !st.OpenedAt.Equal(clock.Now()) {
		t.Fatalf("Stats() = %+v", st)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker("crm_webhook", DefaultBreakerConfig())
	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()
	if got := b.Status(); got != StatusClosed {
		t.Fatalf("Status() = %s, failures are not consecutive", got)
	}
}

func TestBreakerRejectsUntilRecoveryTimeout(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBreaker("meeting_booking", DefaultBreakerConfig(), WithClock(clock.Now))
	trip(b)

	clock.Advance(29 * time.Second)
	if got := b.Admit(); got != Rejected {
		t.Fatalf("Admit() before recovery = %s, want rejected", got)
	}

	clock.Advance(time.Second)
	if got := b.Admit(); got != AdmittedTrial {
		t.Fatalf("Admit() at recovery = %s, want trial", got)
	}
	if got := b.Status(); got != StatusHalfOpen {
		t.Fatalf("Status() = %s, want HALF_OPEN", got)
	}
}

func TestBreakerAdmitsExactlyOneConcurrentTrial(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBreaker("meeting_booking", DefaultBreakerConfig(), WithClock(clock.Now))
	trip(b)
	clock.Advance(31 * time.Second)

	var trials, admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch b.Admit() {
			case AdmittedTrial:
				trials.Add(1)
			case Admitted:
				admitted.Add(1)
			default:
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if trials.Load() != 1 || admitted.Load() != 0 || rejected.Load() != 63 {
		t.Fatalf("trials=%d admitted=%d rejected=%d, want 1/0/63", trials.Load(), admitted.Load(), rejected.Load())
	}
}

func TestBreakerTrialOutcome(t *testing.T) {
	t.Parallel()

	t.Run("success closes", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		b := NewBreaker("knowledge_search", DefaultBreakerConfig(), WithClock(clock.Now))
		trip(b)
		clock.Advance(30 * time.Second)
		b.Admit()
		b.OnSuccess()

		st := b.Stats()
		if st.Status != "CLOSED" || st.ConsecutiveFailures != 0 || st.TrialInFlight {
			t.Fatalf("Stats() = %+v", st)
		}
	})

	t.Run("failure reopens with fresh opened_at", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		b := NewBreaker("knowledge_search", DefaultBreakerConfig(), WithClock(clock.Now))
		trip(b)
		clock.Advance(45 * time.Second)
		b.Admit()
		b.OnFailure()

		st := b.Stats()
		if st.Status != "OPEN" || !st.OpenedAt.Equal(clock.Now()) {
			t.Fatalf("Stats() = %+v, want OPEN at %v", st, clock.Now())
		}
		if got := b.Admit(); got != Rejected {
			t.Fatalf("Admit() right after failed trial = %s", got)
		}
	})
}

func TestBreakerAbandonReleasesTrial(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewBreaker("meeting_booking", DefaultBreakerConfig(), WithClock(clock.Now))
	trip(b)
	openedAt := b.Stats().OpenedAt
	clock.Advance(30 * time.Second)

	if got := b.Admit(); got != AdmittedTrial {
		t.Fatalf("Admit() = %s, want trial", got)
	}
	b.Abandon()

	st := b.Stats()
	if st.Status != "OPEN" || !st.OpenedAt.Equal(openedAt) {
		t.Fatalf("Stats() after Abandon = %+v", st)
	}
	if got := b.Admit(); got != AdmittedTrial {
		t.Fatalf("Admit() after Abandon = %s, want trial", got)
	}
}

func TestBreakerStateListener(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	var (
		mu   sync.Mutex
		seen []string
	)
	listener := func(tr Transition) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tr.From.String()+">"+tr.To.String())
	}
	b := NewBreaker("crm_webhook", DefaultBreakerConfig(), WithClock(clock.Now), WithStateListener(listener))

	trip(b)
	clock.Advance(30 * time.Second)
	b.Admit()
	b.OnSuccess()

	want := []string{"CLOSED>OPEN", "OPEN>HALF_OPEN", "HALF_OPEN>CLOSED"}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
}

func TestNewBreakerAppliesDefaults(t *testing.T) {
	t.Parallel()

	b := NewBreaker("x", BreakerConfig{})
	if got := b.Config(); got != DefaultBreakerConfig() {
		t.Fatalf("Config() = %+v, want defaults", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(map[string]BreakerConfig{
		"meeting_booking":  {FailureThreshold: 2},
		"crm_webhook":      {},
		"knowledge_search": {},
	})

	if got := r.Names(); !reflect.DeepEqual(got, []string{"crm_webhook", "knowledge_search", "meeting_booking"}) {
		t.Fatalf("Names() = %v", got)
	}
	b, ok := r.Get("meeting_booking")
	if !ok || b.Config().FailureThreshold != 2 {
		t.Fatalf("Get(meeting_booking) = %v, %v", b, ok)
	}
	if _, ok := r.Get("unknown"); ok {
		t.Fatal("Get(unknown) ok = true")
	}

	trip(b)
	stats := r.AllStats()
	if len(stats) != 3 || stats["meeting_booking"].Status != "OPEN" || stats["crm_webhook"].Status != "CLOSED" {
		t.Fatalf("AllStats() = %+v", stats)
	}
}
