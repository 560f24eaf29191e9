package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream       = "voiceq:telemetry"
	defaultStreamMaxLen = 10000
)

type RedisSinkOption func(*RedisStreamSink)

// WithStream sets the stream key.
func WithStream(stream string) RedisSinkOption {
	return func(s *RedisStreamSink) {
		if v := strings.TrimSpace(stream); v != "" {
			s.stream = v
		}
	}
}

// WithStreamMaxLen caps the stream length approximately. Zero disables trimming.
func WithStreamMaxLen(n int64) RedisSinkOption {
	return func(s *RedisStreamSink) {
		if n >= 0 {
			s.maxLen = n
		}
	}
}

// RedisStreamSink appends records to a Redis stream with XADD.
type RedisStreamSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamSink(client redis.Cmdable, opts ...RedisSinkOption) (*RedisStreamSink, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &RedisStreamSink{
		client: client,
		stream: defaultStream,
		maxLen: defaultStreamMaxLen,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *RedisStreamSink) WriteTurn(ctx context.Context, rec TurnRecord) error {
	return s.add(ctx, KindTurn, rec.ConversationID, rec)
}

func (s *RedisStreamSink) WriteBreakerEvent(ctx context.Context, ev BreakerEvent) error {
	return s.add(ctx, KindBreaker, ev.Dependency, ev)
}

func (s *RedisStreamSink) add(ctx context.Context, kind, subject string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"kind":    kind,
			"subject": subject,
			"payload": string(raw),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
