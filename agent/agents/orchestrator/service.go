package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	nodex "github.com/tanpawarit/Chative-Voice-Qualification/agent/nodes/orchestrator"
	promptx "github.com/tanpawarit/Chative-Voice-Qualification/agent/prompt"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
	toolx "github.com/tanpawarit/Chative-Voice-Qualification/agent/tool"
)

var (
	ErrInvalidMessage      = nodex.ErrInvalidMessage
	ErrInvalidConversation = nodex.ErrInvalidConversation
	ErrConversationEnded   = contractx.ErrConversationEnded
)

const (
	endedRetention     = time.Hour
	defaultIdleTimeout = 30 * time.Minute
)

// TurnResult is the outcome of one caller turn.
type TurnResult = nodex.GraphOutput

// TurnRequest carries one utterance. RequestedPhase is an optional explicit
// target phase; it is validated like any computed transition.
type TurnRequest struct {
	ConversationID string
	Utterance      string
	RequestedPhase statex.Phase
}

type Option func(*Orchestrator)

func WithStore(store statex.Store) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

func WithMachine(m *statex.Machine) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.machine = m
		}
	}
}

func WithReplyBook(book *promptx.ReplyBook) Option {
	return func(o *Orchestrator) {
		if book != nil {
			o.replies = book
		}
	}
}

// WithResponder rephrases templated replies through the executor under the
// response_generation dependency.
func WithResponder(r contractx.Responder, policy resiliencex.Policy) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rephraser = &nodex.Rephraser{Responder: r, Policy: policy}
		}
	}
}

func WithRecorder(rec nodex.Recorder) Option {
	return func(o *Orchestrator) {
		if rec != nil {
			o.recorder = rec
		}
	}
}

func WithPublisher(p nodex.TurnPublisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIdleTimeout sets how long a conversation may go without a turn before
// SweepIdle ends it.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.idleTimeout = d
		}
	}
}

type session struct {
	// mu serialises turns of one conversation.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	// lastActive is guarded by Orchestrator.mu.
	lastActive time.Time
}

// Orchestrator drives caller turns. Conversations run concurrently; turns of
// one conversation run one at a time.
type Orchestrator struct {
	engine    *qualifyx.Engine
	machine   *statex.Machine
	executor  *resiliencex.Executor
	catalog   *toolx.Catalog
	store     statex.Store
	replies   *promptx.ReplyBook
	rephraser *nodex.Rephraser
	recorder  nodex.Recorder
	publisher nodex.TurnPublisher

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	mu          sync.Mutex
	sessions    map[string]*session
	ended       map[string]time.Time
	idleTimeout time.Duration

	now func() time.Time
}

func New(
	engine *qualifyx.Engine,
	executor *resiliencex.Executor,
	catalog *toolx.Catalog,
	opts ...Option,
) (*Orchestrator, error) {
	if engine == nil {
		return nil, errors.New("qualification engine is required")
	}
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	if catalog == nil {
		return nil, errors.New("capability catalog is required")
	}

	o := &Orchestrator{
		engine:    engine,
		executor:  executor,
		catalog:   catalog,
		machine:   statex.NewMachine(),
		store:     statex.NewMemoryStore(),
		recorder:  nodex.NoopRecorder{},
		publisher: nodex.NoopPublisher{},
		sessions:    make(map[string]*session),
		ended:       make(map[string]time.Time),
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if o.replies == nil {
		book, err := promptx.LoadReplyBook()
		if err != nil {
			return nil, err
		}
		o.replies = book
	}

	for _, name := range catalog.Names() {
		if _, ok := executor.Registry().Get(name); !ok {
			return nil, fmt.Errorf("%w: no circuit breaker for capability %s", contractx.ErrValidation, name)
		}
	}
	if o.rephraser != nil {
		if _, ok := executor.Registry().Get(contractx.DependencyResponseGeneration); !ok {
			return nil, fmt.Errorf("%w: no circuit breaker for %s", contractx.ErrValidation, contractx.DependencyResponseGeneration)
		}
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID string, utterance string) (TurnResult, error) {
	return o.HandleTurnRequest(ctx, TurnRequest{ConversationID: conversationID, Utterance: utterance})
}

// HandleTurnRequest processes one turn. Capability failures are recovered
// into a fallback reply; an error is returned only for invalid input, an
// ended conversation, or a store failure.
func (o *Orchestrator) HandleTurnRequest(ctx context.Context, req TurnRequest) (TurnResult, error) {
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		return TurnResult{}, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidConversation)
	}

	sess, err := o.session(id)
	if err != nil {
		return TurnResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.ctx.Err() != nil {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrConversationEnded, id)
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sess.ctx, cancel)
	defer stop()

	out, err := o.graphRunner.Invoke(turnCtx, nodex.GraphInput{
		ConversationID: id,
		Utterance:      req.Utterance,
		RequestedPhase: req.RequestedPhase,
	})
	if err != nil {
		if sess.ctx.Err() != nil {
			return TurnResult{}, fmt.Errorf("%w: %s", ErrConversationEnded, id)
		}
		return TurnResult{}, err
	}

	if out.Ended {
		o.finish(ctx, id, sess)
	}
	return out, nil
}

// EndConversation cancels any in-flight work for the conversation, hands a
// qualified lead to the CRM, discards its state and rejects later turns.
func (o *Orchestrator) EndConversation(ctx context.Context, conversationID string) error {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidConversation)
	}

	o.mu.Lock()
	sess, ok := o.sessions[id]
	if ok {
		delete(o.sessions, id)
	}
	o.markEndedLocked(id)
	o.mu.Unlock()

	if ok {
		sess.cancel()
		// Wait for an aborted turn to unwind before removing its state.
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}

	o.handOffLead(context.WithoutCancel(ctx), id)

	if err := o.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	log.Info().Str("conversation_id", id).Msg("conversation ended")
	return nil
}

// ActiveConversations reports how many conversations are in progress.
func (o *Orchestrator) ActiveConversations() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

func (o *Orchestrator) session(id string) (*session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, done := o.ended[id]; done {
		return nil, fmt.Errorf("%w: %s", ErrConversationEnded, id)
	}
	if sess, ok := o.sessions[id]; ok {
		sess.lastActive = o.now()
		return sess, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{ctx: ctx, cancel: cancel, lastActive: o.now()}
	o.sessions[id] = sess
	return sess, nil
}

// SweepIdle ends conversations that have had no turn for the idle timeout,
// as if the caller hung up. A conversation with a turn in flight is skipped.
// It returns how many conversations were ended.
func (o *Orchestrator) SweepIdle(ctx context.Context) int {
	now := o.now()

	var idle []string
	o.mu.Lock()
	for id, sess := range o.sessions {
		if now.Sub(sess.lastActive) < o.idleTimeout {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}
		sess.mu.Unlock()
		idle = append(idle, id)
	}
	o.mu.Unlock()

	ended := 0
	for _, id := range idle {
		if err := o.EndConversation(ctx, id); err != nil {
			log.Warn().Err(err).Str("conversation_id", id).Msg("end idle conversation failed")
			continue
		}
		ended++
	}
	if ended > 0 {
		log.Info().Int("ended", ended).Dur("idle_timeout", o.idleTimeout).Msg("idle conversations swept")
	}
	return ended
}

// finish closes a conversation that reached CLOSING. The caller holds sess.mu.
func (o *Orchestrator) finish(ctx context.Context, id string, sess *session) {
	o.mu.Lock()
	delete(o.sessions, id)
	o.markEndedLocked(id)
	o.mu.Unlock()

	sess.cancel()
	if err := o.store.Delete(context.WithoutCancel(ctx), id); err != nil {
		log.Warn().Err(err).Str("conversation_id", id).Msg("delete closed conversation failed")
	}
}

// handOffLead logs a caller who hung up before CLOSING. A conversation that
// reached CLOSING has already been removed from the store.
func (o *Orchestrator) handOffLead(ctx context.Context, id string) {
	if !o.catalog.Has(contractx.CapabilityCRMWebhook) {
		return
	}
	conv, err := o.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, statex.ErrStateNotFound) {
			log.Warn().Err(err).Str("conversation_id", id).Msg("load conversation for lead hand-off failed")
		}
		return
	}
	tier := o.engine.Tier(conv.Signals)
	if tier == qualifyx.TierSelfServe {
		return
	}

	entry, err := o.catalog.Get(contractx.CapabilityCRMWebhook)
	if err != nil {
		return
	}
	req := contractx.CapabilityRequest{
		ConversationID: id,
		Phase:          statex.PhaseClosing,
		Tier:           tier,
		Signals:        conv.Signals.Clone(),
		Turn:           conv.Turns + 1,
		Now:            o.now(),
	}
	res, err := o.executor.Do(ctx, contractx.CapabilityCRMWebhook, entry.Policy, func(ctx context.Context) (any, error) {
		return entry.Capability.Invoke(ctx, req)
	})
	if err != nil {
		outcome := statex.OutcomeFailed
		switch resiliencex.KindOf(err) {
		case resiliencex.KindUnavailable:
			outcome = statex.OutcomeUnavailable
		case resiliencex.KindTimeout:
			outcome = statex.OutcomeTimeout
		}
		o.recorder.ObserveCapability(contractx.CapabilityCRMWebhook, string(outcome), len(res.Attempts))
		log.Warn().
			Err(err).
			Str("conversation_id", id).
			Str("dependency", contractx.CapabilityCRMWebhook).
			Int("attempt", len(res.Attempts)).
			Msg("lead hand-off on hang-up failed")
		return
	}
	o.recorder.ObserveCapability(contractx.CapabilityCRMWebhook, string(statex.OutcomeSuccess), len(res.Attempts))
	log.Info().Str("conversation_id", id).Str("tier", string(tier)).Msg("lead handed off on hang-up")
}

func (o *Orchestrator) markEndedLocked(id string) {
	now := o.now()
	for k, at := range o.ended {
		if now.Sub(at) > endedRetention {
			delete(o.ended, k)
		}
	}
	o.ended[id] = now
}
