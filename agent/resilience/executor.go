package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy bounds one invocation. Defaults keep total wall-clock time short so a
// voice caller does not sit through dead air.
type Policy struct {
	MaxRetries     int           `split_words:"true" default:"2"`
	BaseDelay      time.Duration `split_words:"true" default:"500ms"`
	MaxDelay       time.Duration `split_words:"true" default:"3s"`
	DisableJitter  bool          `split_words:"true" default:"false"`
	AttemptTimeout time.Duration `split_words:"true" default:"2s"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		AttemptTimeout: 2 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	return p
}

// Call is one attempt against a dependency.
type Call func(ctx context.Context) (any, error)

type AttemptOutcome string

const (
	AttemptSuccess  AttemptOutcome = "success"
	AttemptFailure  AttemptOutcome = "failure"
	AttemptTimeout  AttemptOutcome = "timeout"
	AttemptCanceled AttemptOutcome = "canceled"
)

// Attempt records one try. It lives only as long as the Result holding it.
type Attempt struct {
	Number  int            `json:"attempt_number"`
	Delay   time.Duration  `json:"delay_before_attempt"`
	Outcome AttemptOutcome `json:"outcome"`
}

type Result struct {
	Dependency string
	Value      any
	Attempts   []Attempt
	// Trial is set when the invocation was the breaker's half-open trial.
	Trial bool
}

type ExecutorOption func(*Executor)

// WithJitter replaces the uniform [0, d] jitter function.
func WithJitter(fn func(d time.Duration) time.Duration) ExecutorOption {
	return func(e *Executor) {
		if fn != nil {
			e.jitter = fn
		}
	}
}

// Executor runs calls against named dependencies with bounded retries,
// consulting the dependency's breaker before every attempt.
type Executor struct {
	registry *Registry
	jitter   func(d time.Duration) time.Duration
}

func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		jitter:   fullJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d + 1)
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// Do executes call up to policy.MaxRetries+1 times. A breaker rejection ends
// the invocation with KindUnavailable without running call and without using
// a retry slot. The breaker hears about the invocation once: success on
// success, failure on terminal failure. A half-open trial is never retried.
//
// If ctx ends while an attempt or backoff is pending the invocation returns
// KindCanceled and the late result of the attempt is discarded.
func (e *Executor) Do(ctx context.Context, dependency string, policy Policy, call Call) (Result, error) {
	res := Result{Dependency: dependency}

	breaker, ok := e.registry.Get(dependency)
	if !ok {
		return res, &DependencyError{
			Dependency: dependency,
			Kind:       KindUnavailable,
			Err:        fmt.Errorf("%w: %s", ErrUnknownDependency, dependency),
		}
	}
	policy = policy.normalized()

	var (
		pending  time.Duration
		lastErr  error
		timedOut bool
		failed   bool
		rejected bool
	)

	err := retry.Do(ctx, e.backoff(policy, &pending), func(ctx context.Context) error {
		adm := breaker.Admit()
		if adm == Rejected {
			rejected = true
			return errRejectedByBreaker
		}
		if adm == AdmittedTrial {
			res.Trial = true
		}

		attempt := Attempt{Number: len(res.Attempts) + 1, Delay: pending}
		pending = 0

		out := runAttempt(ctx, policy.AttemptTimeout, call)
		switch {
		case out.err == nil:
			attempt.Outcome = AttemptSuccess
			res.Attempts = append(res.Attempts, attempt)
			res.Value = out.value
			return nil
		case ctx.Err() != nil:
			attempt.Outcome = AttemptCanceled
			res.Attempts = append(res.Attempts, attempt)
			return ctx.Err()
		}

		failed = true
		lastErr = out.err
		timedOut = out.timedOut
		attempt.Outcome = AttemptFailure
		if out.timedOut {
			attempt.Outcome = AttemptTimeout
		}
		res.Attempts = append(res.Attempts, attempt)

		if adm == AdmittedTrial || IsPermanent(out.err) {
			return out.err
		}
		return retry.RetryableError(out.err)
	})

	attempts := len(res.Attempts)
	switch {
	case err == nil:
		breaker.OnSuccess()
		return res, nil

	case ctx.Err() != nil:
		if failed {
			breaker.OnFailure()
		} else if res.Trial {
			breaker.Abandon()
		}
		return res, &DependencyError{Dependency: dependency, Kind: KindCanceled, Attempts: attempts, Err: ctx.Err()}

	case rejected:
		if failed {
			breaker.OnFailure()
		}
		return res, &DependencyError{Dependency: dependency, Kind: KindUnavailable, Attempts: attempts, Err: lastErr}
	}

	breaker.OnFailure()
	kind := KindFailed
	if timedOut {
		kind = KindTimeout
	}
	return res, &DependencyError{Dependency: dependency, Kind: kind, Attempts: attempts, Err: lastErr}
}

// backoff yields min(MaxDelay, BaseDelay*2^i) for retry i, optionally
// jittered, and stores each chosen delay in pending for the next attempt.
func (e *Executor) backoff(p Policy, pending *time.Duration) retry.Backoff {
	b := retry.NewExponential(p.BaseDelay)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	b = retry.WithMaxRetries(uint64(p.MaxRetries), b)

	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if stop {
			return 0, true
		}
		if !p.DisableJitter {
			d = e.jitter(d)
		}
		*pending = d
		return d, false
	})
}

type attemptResult struct {
	value    any
	err      error
	timedOut bool
}

// runAttempt runs call under its own deadline. The call keeps running in its
// goroutine after a timeout or cancellation, but its result is dropped.
func runAttempt(ctx context.Context, timeout time.Duration, call Call) attemptResult {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: Permanent(fmt.Errorf("capability panic: %v", r))}
			}
		}()
		v, err := call(actx)
		done <- attemptResult{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			out.timedOut = true
			out.err = fmt.Errorf("%w: %w", ErrTimeout, out.err)
		}
		return out
	case <-actx.Done():
		if ctx.Err() != nil {
			return attemptResult{err: ctx.Err()}
		}
		return attemptResult{
			err:      fmt.Errorf("%w: no response within %s", ErrTimeout, timeout),
			timedOut: true,
		}
	}
}
