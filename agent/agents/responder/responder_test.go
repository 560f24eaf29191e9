package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func sampleRequest() contractx.ResponderRequest {
	return contractx.ResponderRequest{
		ConversationID: "c1",
		Utterance:      "we have 12 sales reps",
		Phase:          statex.PhaseDiscovery,
		Tier:           qualifyx.TierSalesReady,
		Intent:         signalx.IntentNone,
		Draft:          "Got it. How many documents do you send each month?",
	}
}

func TestRespondRephrasesDraft(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: `  "Nice, twelve reps. Roughly how many documents go out each month?"  `}
	r, err := New(context.Background(), fake, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Respond(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got != "Nice, twelve reps. Roughly how many documents go out each month?" {
		t.Fatalf("Respond() = %q", got)
	}

	if len(fake.input) != 2 {
		t.Fatalf("model saw %d messages, want 2", len(fake.input))
	}
	if fake.input[0].Role != schema.System || !strings.Contains(fake.input[0].Content, "sales qualification assistant") {
		t.Fatalf("unexpected system message: %+v", fake.input[0])
	}
	user := fake.input[1].Content
	for _, want := range []string{"we have 12 sales reps", "DISCOVERY", "SALES_READY", "How many documents"} {
		if !strings.Contains(user, want) {
			t.Fatalf("user message %q missing %q", user, want)
		}
	}
}

func TestRespondModelFailure(t *testing.T) {
	t.Parallel()

	r, err := New(context.Background(), &fakeChatModel{err: errors.New("rate limited")}, "rephrase")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := r.Respond(context.Background(), sampleRequest()); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestRespondEmptyContent(t *testing.T) {
	t.Parallel()

	r, err := New(context.Background(), &fakeChatModel{reply: "   "}, "rephrase")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := r.Respond(context.Background(), sampleRequest()); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestRespondRejectsEmptyDraft(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: "hello"}
	r, err := New(context.Background(), fake, "rephrase")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	req := sampleRequest()
	req.Draft = " "
	if _, err := r.Respond(context.Background(), req); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if fake.input != nil {
		t.Fatal("model called for an empty draft")
	}
}

func TestNewRequiresModel(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), nil, "rephrase"); err == nil {
		t.Fatal("expected error for nil model")
	}
}
