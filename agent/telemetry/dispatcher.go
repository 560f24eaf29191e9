package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBufferSize   = 256
	defaultWriteTimeout = 2 * time.Second
)

// Kinds reported to the drop hook.
const (
	KindTurn    = "turn"
	KindBreaker = "breaker"
)

type envelope struct {
	turn    *TurnRecord
	breaker *BreakerEvent
}

type DispatcherOption func(*Dispatcher)

// WithWriteTimeout bounds a single sink write.
func WithWriteTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.writeTimeout = d
		}
	}
}

// WithDropHook is called whenever a record is discarded because the buffer is
// full or the dispatcher is closed.
func WithDropHook(fn func(kind string)) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.onDrop = fn
	}
}

// Dispatcher delivers records to a Sink on a background goroutine. Publishing
// never blocks; records that do not fit in the buffer are dropped.
type Dispatcher struct {
	sink         Sink
	queue        chan envelope
	writeTimeout time.Duration
	onDrop       func(kind string)

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	done    chan struct{}
}

func NewDispatcher(sink Sink, size int, opts ...DispatcherOption) *Dispatcher {
	if size <= 0 {
		size = defaultBufferSize
	}
	d := &Dispatcher{
		sink:         sink,
		queue:        make(chan envelope, size),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	go d.run()
	return d
}

// PublishTurn enqueues rec and reports whether it was accepted.
func (d *Dispatcher) PublishTurn(rec TurnRecord) bool {
	return d.enqueue(envelope{turn: &rec}, KindTurn)
}

// PublishBreakerEvent enqueues ev and reports whether it was accepted.
func (d *Dispatcher) PublishBreakerEvent(ev BreakerEvent) bool {
	return d.enqueue(envelope{breaker: &ev}, KindBreaker)
}

// Dropped returns the number of records discarded so far.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops accepting records and waits until the buffer is drained or ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(env envelope, kind string) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(kind)
		return false
	}
	select {
	case d.queue <- env:
		return true
	default:
		d.drop(kind)
		return false
	}
}

func (d *Dispatcher) drop(kind string) {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(kind)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for env := range d.queue {
		d.write(env)
	}
}

func (d *Dispatcher) write(env envelope) {
	if d.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("telemetry sink panicked")
		}
	}()

	switch {
	case env.turn != nil:
		if err := d.sink.WriteTurn(ctx, *env.turn); err != nil {
			log.Warn().Err(err).Str("conversation_id", env.turn.ConversationID).Msg("telemetry turn write failed")
		}
	case env.breaker != nil:
		if err := d.sink.WriteBreakerEvent(ctx, *env.breaker); err != nil {
			log.Warn().Err(err).Str("dependency", env.breaker.Dependency).Msg("telemetry breaker write failed")
		}
	}
}
