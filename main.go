package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Voice-Qualification/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Voice-Qualification/agent/agents/responder"
	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	"github.com/tanpawarit/Chative-Voice-Qualification/agent/llm"
	metricsx "github.com/tanpawarit/Chative-Voice-Qualification/agent/metrics"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
	"github.com/tanpawarit/Chative-Voice-Qualification/agent/telemetry"
	toolx "github.com/tanpawarit/Chative-Voice-Qualification/agent/tool"
	configx "github.com/tanpawarit/Chative-Voice-Qualification/pkg/config"
	_ "github.com/tanpawarit/Chative-Voice-Qualification/pkg/logger/autoload"
	qstashx "github.com/tanpawarit/Chative-Voice-Qualification/pkg/qstash"
)

type AppConfig struct {
	MetricsAddr        string        `split_words:"true"`
	ShutdownTimeout    time.Duration `split_words:"true" default:"5s"`
	SessionIdleTimeout time.Duration `split_words:"true" default:"30m"`
}

type capabilityConfigs struct {
	knowledge *toolx.KnowledgeConfig
	booking   *toolx.BookingConfig
	crm       *toolx.CRMConfig
	qstash    *qstashx.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("voice qualification agent stopped")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("APP")
	qualifyCfg := configx.MustNew[qualifyx.Config]("QUALIFICATION")
	caps := capabilityConfigs{
		knowledge: configx.MustNew[toolx.KnowledgeConfig]("KNOWLEDGE"),
		booking:   configx.MustNew[toolx.BookingConfig]("BOOKING"),
		crm:       configx.MustNew[toolx.CRMConfig]("CRM"),
		qstash:    configx.MustNew[qstashx.Config]("QSTASH"),
	}
	responderCfg := configx.MustNew[llm.Config]("RESPONDER")
	snapshotCfg := configx.MustNew[statex.UpstashRedisConfig]("SNAPSHOT")
	telemetryCfg := configx.MustNew[telemetry.Config]("TELEMETRY")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := metricsx.New(reg)

	sink, closeSinks, err := buildSinks(ctx, *telemetryCfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := telemetry.NewDispatcher(sink, telemetryCfg.BufferSize,
		telemetry.WithWriteTimeout(telemetryCfg.WriteTimeout),
		telemetry.WithDropHook(metrics.ObserveTelemetryDrop),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Uint64("dropped", dispatcher.Dropped()).Msg("telemetry not fully flushed")
		}
	}()

	registry := resiliencex.NewRegistry(map[string]resiliencex.BreakerConfig{
		contractx.CapabilityKnowledgeSearch:    caps.knowledge.Breaker,
		contractx.CapabilityMeetingBooking:     caps.booking.Breaker,
		contractx.CapabilityCRMWebhook:         caps.crm.Breaker,
		contractx.DependencyResponseGeneration: responderCfg.Breaker,
	}, resiliencex.WithStateListener(func(tr resiliencex.Transition) {
		metrics.ObserveTransition(tr)
		dispatcher.PublishBreakerEvent(telemetry.NewBreakerEvent(tr))
	}))
	metrics.TrackBreakers(registry)
	executor := resiliencex.NewExecutor(registry)

	catalog, err := buildCatalog(caps)
	if err != nil {
		return err
	}

	engine, err := qualifyx.NewEngine(*qualifyCfg)
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{
		orchestrator.WithRecorder(metrics),
		orchestrator.WithPublisher(dispatcher),
		orchestrator.WithIdleTimeout(appCfg.SessionIdleTimeout),
	}
	if snapshotCfg.Enabled() {
		store, err := statex.NewUpstashRedisStore(*snapshotCfg)
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithStore(store))
	}
	if responderCfg.Enabled() {
		orCfg := responderCfg.OpenRouter()
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return err
		}
		r, err := responder.New(ctx, chatModel, "")
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithResponder(r, responderCfg.Retry))
	}

	agent, err := orchestrator.New(engine, executor, catalog, opts...)
	if err != nil {
		return err
	}

	if addr := strings.TrimSpace(appCfg.MetricsAddr); addr != "" {
		srv := serveMetrics(addr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	go sweepIdle(ctx, agent, appCfg.SessionIdleTimeout)

	log.Info().
		Strs("capabilities", catalog.Names()).
		Bool("responder", responderCfg.Enabled()).
		Bool("snapshot_store", snapshotCfg.Enabled()).
		Msg("voice qualification agent ready")

	return converse(ctx, agent)
}

func buildSinks(ctx context.Context, cfg telemetry.Config) (telemetry.Sink, func(), error) {
	sinks := telemetry.MultiSink{telemetry.NewLogSink(log.Logger)}
	var closers []func()

	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     strings.TrimSpace(cfg.RedisAddr),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { _ = client.Close() })
		s, err := telemetry.NewRedisStreamSink(client,
			telemetry.WithStream(cfg.Stream),
			telemetry.WithStreamMaxLen(cfg.StreamMaxLen),
		)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
	}

	if cfg.PostgresEnabled() {
		db, err := telemetry.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := telemetry.NewPostgresSink(db)
		if err != nil {
			return nil, nil, err
		}
		if cfg.CreateSchema {
			if err := s.CreateSchema(ctx); err != nil {
				_ = s.Close()
				return nil, nil, err
			}
		}
		closers = append(closers, func() { _ = s.Close() })
		sinks = append(sinks, s)
	}

	return sinks, func() {
		for _, fn := range closers {
			fn()
		}
	}, nil
}

func buildCatalog(caps capabilityConfigs) (*toolx.Catalog, error) {
	var entries []toolx.Entry

	if strings.TrimSpace(caps.knowledge.URL) != "" {
		c, err := toolx.NewKnowledgeSearch(*caps.knowledge, nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, toolx.Entry{Capability: c, Policy: caps.knowledge.Retry, Gating: true})
	}
	if strings.TrimSpace(caps.booking.URL) != "" {
		c, err := toolx.NewMeetingBooking(*caps.booking, nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, toolx.Entry{Capability: c, Policy: caps.booking.Policy(), Gating: true})
	}
	if strings.TrimSpace(caps.crm.Destination) != "" && strings.TrimSpace(caps.qstash.Token) != "" {
		client, err := qstashx.NewClient(*caps.qstash)
		if err != nil {
			return nil, err
		}
		c, err := toolx.NewCRMWebhook(*caps.crm, client)
		if err != nil {
			return nil, err
		}
		entries = append(entries, toolx.Entry{Capability: c, Policy: caps.crm.Retry})
	}

	return toolx.NewCatalog(entries...)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return srv
}

func sweepIdle(ctx context.Context, agent *orchestrator.Orchestrator, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agent.SweepIdle(ctx)
		}
	}
}

// converse reads one utterance per line from stdin. An empty line or EOF
// hangs up the current call.
func converse(ctx context.Context, agent *orchestrator.Orchestrator) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	conversationID := uuid.NewString()
	fmt.Printf("[%s] caller connected\n", conversationID)

	hangUp := func() {
		if err := agent.EndConversation(context.WithoutCancel(ctx), conversationID); err != nil {
			log.Warn().Err(err).Str("conversation_id", conversationID).Msg("end conversation failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			hangUp()
			return nil
		case line, ok := <-lines:
			if !ok {
				hangUp()
				return nil
			}
			if strings.TrimSpace(line) == "" {
				hangUp()
				conversationID = uuid.NewString()
				fmt.Printf("[%s] caller connected\n", conversationID)
				continue
			}

			res, err := agent.HandleTurn(ctx, conversationID, line)
			if err != nil {
				if errors.Is(err, orchestrator.ErrConversationEnded) && ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Str("conversation_id", conversationID).Msg("turn failed")
				continue
			}
			fmt.Printf("agent (%s, %s): %s\n", res.Phase, res.Tier, res.Reply)

			if res.Ended {
				conversationID = uuid.NewString()
				fmt.Printf("[%s] caller connected\n", conversationID)
			}
		}
	}
}
