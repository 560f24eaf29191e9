package telemetry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStreamSink(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sink, err := NewRedisStreamSink(client, WithStream("test:telemetry"), WithStreamMaxLen(0))
	if err != nil {
		t.Fatalf("NewRedisStreamSink() error = %v", err)
	}

	ctx := context.Background()
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	if err := sink.WriteTurn(ctx, TurnRecord{ID: "t-1", ConversationID: "conv-1", Turn: 1, Tier: "NURTURE", Phase: "DISCOVERY", At: at}); err != nil {
		t.Fatalf("WriteTurn() error = %v", err)
	}
	if err := sink.WriteBreakerEvent(ctx, BreakerEvent{Dependency: "knowledge_search", From: "CLOSED", To: "OPEN", ConsecutiveFailures: 3, At: at}); err != nil {
		t.Fatalf("WriteBreakerEvent() error = %v", err)
	}

	msgs, err := client.XRange(ctx, "test:telemetry", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stream length = %d", len(msgs))
	}
	if msgs[0].Values["kind"] != KindTurn || msgs[0].Values["subject"] != "conv-1" {
		t.Fatalf("first entry = %v", msgs[0].Values)
	}
	if msgs[1].Values["kind"] != KindBreaker || msgs[1].Values["subject"] != "knowledge_search" {
		t.Fatalf("second entry = %v", msgs[1].Values)
	}

	var rec TurnRecord
	if err := json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &rec); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if rec.ID != "t-1" || rec.Tier != "NURTURE" || !rec.At.Equal(at) {
		t.Fatalf("payload = %+v", rec)
	}
}

func TestRedisStreamSinkUnavailable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	sink, err := NewRedisStreamSink(client)
	if err != nil {
		t.Fatalf("NewRedisStreamSink() error = %v", err)
	}
	if err := sink.WriteTurn(context.Background(), TurnRecord{ConversationID: "conv-1"}); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestNewRedisStreamSinkRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisStreamSink(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}
