package resilience

import (
	"sync"
	"time"
)

// Status is the health state of one dependency.
type Status int

const (
	StatusClosed Status = iota
	StatusOpen
	StatusHalfOpen
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "CLOSED"
	case StatusOpen:
		return "OPEN"
	case StatusHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Admission is the breaker's answer to a call request.
type Admission int

const (
	Rejected Admission = iota
	Admitted
	// AdmittedTrial is the single trial call let through after the recovery
	// timeout. Its outcome decides whether the breaker closes or re-opens.
	AdmittedTrial
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case AdmittedTrial:
		return "trial"
	default:
		return "rejected"
	}
}

type BreakerConfig struct {
	FailureThreshold int           `split_words:"true" default:"3"`
	RecoveryTimeout  time.Duration `split_words:"true" default:"30s"`
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Transition describes one status change, delivered to state listeners.
type Transition struct {
	Dependency          string
	From                Status
	To                  Status
	ConsecutiveFailures int
	At                  time.Time
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Dependency          string    `json:"dependency"`
	Status              string    `json:"status"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
	TrialInFlight       bool      `json:"trial_in_flight"`
}

type BreakerOption func(*Breaker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithStateListener registers a callback for status changes. Listeners run
// after the breaker lock is released and must not block.
func WithStateListener(fn func(Transition)) BreakerOption {
	return func(b *Breaker) {
		if fn != nil {
			b.listeners = append(b.listeners, fn)
		}
	}
}

// Breaker is a three-state circuit breaker for one named dependency. It is
// shared by every conversation that calls the dependency.
type Breaker struct {
	name      string
	cfg       BreakerConfig
	now       func() time.Time
	listeners []func(Transition)

	mu       sync.RWMutex
	status   Status
	failures int
	openedAt time.Time
	trial    bool
}

func NewBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}

	b := &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		status: StatusClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) Config() BreakerConfig {
	return b.cfg
}

// Allow reports whether a call may proceed. A true result obliges the caller
// to report the outcome with OnSuccess, OnFailure or Abandon.
func (b *Breaker) Allow() bool {
	return b.Admit() != Rejected
}

// Admit decides whether a call may proceed. While a trial is outstanding
// every other caller is rejected as if the breaker were still open.
func (b *Breaker) Admit() Admission {
	b.mu.RLock()
	if b.status == StatusClosed {
		b.mu.RUnlock()
		return Admitted
	}
	b.mu.RUnlock()

	b.mu.Lock()
	var (
		adm Admission
		tr  *Transition
	)
	switch b.status {
	case StatusClosed:
		adm = Admitted
	case StatusOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.trial = true
			tr = b.transitionLocked(StatusHalfOpen)
			adm = AdmittedTrial
		} else {
			adm = Rejected
		}
	case StatusHalfOpen:
		if b.trial {
			adm = Rejected
		} else {
			b.trial = true
			adm = AdmittedTrial
		}
	}
	b.mu.Unlock()

	b.notify(tr)
	return adm
}

func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	var tr *Transition
	b.failures = 0
	if b.status == StatusHalfOpen {
		b.trial = false
		tr = b.transitionLocked(StatusClosed)
	}
	b.mu.Unlock()

	b.notify(tr)
}

func (b *Breaker) OnFailure() {
	b.mu.Lock()
	var tr *Transition
	b.failures++
	switch b.status {
	case StatusClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			tr = b.transitionLocked(StatusOpen)
		}
	case StatusHalfOpen:
		b.trial = false
		b.openedAt = b.now()
		tr = b.transitionLocked(StatusOpen)
	}
	b.mu.Unlock()

	b.notify(tr)
}

// Abandon releases an admitted trial whose caller went away before an
// outcome was known. The breaker returns to OPEN with its original opened_at,
// so the next caller may try again immediately.
func (b *Breaker) Abandon() {
	b.mu.Lock()
	var tr *Transition
	if b.status == StatusHalfOpen && b.trial {
		b.trial = false
		tr = b.transitionLocked(StatusOpen)
	}
	b.mu.Unlock()

	b.notify(tr)
}

func (b *Breaker) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Dependency:          b.name,
		Status:              b.status.String(),
		ConsecutiveFailures: b.failures,
		TrialInFlight:       b.trial,
	}
	if b.status != StatusClosed {
		st.OpenedAt = b.openedAt
	}
	return st
}

func (b *Breaker) transitionLocked(to Status) *Transition {
	from := b.status
	if from == to {
		return nil
	}
	b.status = to
	return &Transition{
		Dependency:          b.name,
		From:                from,
		To:                  to,
		ConsecutiveFailures: b.failures,
		At:                  b.now(),
	}
}

func (b *Breaker) notify(tr *Transition) {
	if tr == nil {
		return
	}
	for _, fn := range b.listeners {
		fn(*tr)
	}
}
