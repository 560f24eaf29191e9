package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
)

type turnRow struct {
	bun.BaseModel `bun:"table:voice_turn_records,alias:tr"`

	ID              string           `bun:"id,pk"`
	ConversationID  string           `bun:"conversation_id,notnull"`
	Turn            int              `bun:"turn,notnull"`
	Intent          string           `bun:"intent"`
	SignalsThisTurn []signalx.Update `bun:"signals_this_turn,type:jsonb"`
	Signals         signalx.Set      `bun:"signals,type:jsonb"`
	Tier            string           `bun:"tier,notnull"`
	Reasons         []string         `bun:"reasons,array"`
	PhaseBefore     string           `bun:"phase_before,notnull"`
	Phase           string           `bun:"phase,notnull"`
	Capability      string           `bun:"capability,nullzero"`
	Outcome         string           `bun:"outcome,nullzero"`
	Attempts        int              `bun:"attempts"`
	Violation       string           `bun:"violation,nullzero"`
	LatencyMS       int64            `bun:"latency_ms"`
	At              time.Time        `bun:"at,notnull"`
}

type breakerRow struct {
	bun.BaseModel `bun:"table:voice_breaker_events,alias:be"`

	ID                  int64     `bun:"id,pk,autoincrement"`
	Dependency          string    `bun:"dependency,notnull"`
	FromStatus          string    `bun:"from_status,notnull"`
	ToStatus            string    `bun:"to_status,notnull"`
	ConsecutiveFailures int       `bun:"consecutive_failures"`
	At                  time.Time `bun:"at,notnull"`
}

func newTurnRow(rec TurnRecord) *turnRow {
	return &turnRow{
		ID:              rec.ID,
		ConversationID:  rec.ConversationID,
		Turn:            rec.Turn,
		Intent:          rec.Intent,
		SignalsThisTurn: rec.SignalsThisTurn,
		Signals:         rec.Signals,
		Tier:            rec.Tier,
		Reasons:         rec.Reasons,
		PhaseBefore:     rec.PhaseBefore,
		Phase:           rec.Phase,
		Capability:      rec.Capability,
		Outcome:         rec.Outcome,
		Attempts:        rec.Attempts,
		Violation:       rec.Violation,
		LatencyMS:       rec.Latency.Milliseconds(),
		At:              rec.At.UTC(),
	}
}

func newBreakerRow(ev BreakerEvent) *breakerRow {
	return &breakerRow{
		Dependency:          ev.Dependency,
		FromStatus:          ev.From,
		ToStatus:            ev.To,
		ConsecutiveFailures: ev.ConsecutiveFailures,
		At:                  ev.At.UTC(),
	}
}

// PostgresSink stores turn records and breaker events in Postgres.
type PostgresSink struct {
	db *bun.DB
}

// OpenPostgres opens a bun handle over pgdriver. The connection is lazy.
func OpenPostgres(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func NewPostgresSink(db *bun.DB) (*PostgresSink, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresSink{db: db}, nil
}

// CreateSchema creates the telemetry tables if they do not exist.
func (s *PostgresSink) CreateSchema(ctx context.Context) error {
	for _, model := range []any{(*turnRow)(nil), (*breakerRow)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create telemetry table: %w", err)
		}
	}
	return nil
}

func (s *PostgresSink) WriteTurn(ctx context.Context, rec TurnRecord) error {
	if _, err := s.insertTurn(rec).Exec(ctx); err != nil {
		return fmt.Errorf("insert turn record: %w", err)
	}
	return nil
}

func (s *PostgresSink) WriteBreakerEvent(ctx context.Context, ev BreakerEvent) error {
	if _, err := s.insertBreaker(ev).Exec(ctx); err != nil {
		return fmt.Errorf("insert breaker event: %w", err)
	}
	return nil
}

func (s *PostgresSink) insertTurn(rec TurnRecord) *bun.InsertQuery {
	return s.db.NewInsert().Model(newTurnRow(rec)).On("CONFLICT (id) DO NOTHING")
}

func (s *PostgresSink) insertBreaker(ev BreakerEvent) *bun.InsertQuery {
	return s.db.NewInsert().Model(newBreakerRow(ev))
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
