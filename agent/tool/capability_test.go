package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
	"github.com/tanpawarit/Chative-Voice-Qualification/pkg/qstash"
)

func TestKnowledgeSearchInvoke(t *testing.T) {
	t.Parallel()

	var got knowledgeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer kb-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"results":[
			{"title":"Pricing","snippet":"Plans start at $20 per seat.","score":0.4},
			{"title":"Integrations","snippet":"We integrate with Salesforce and HubSpot.","score":0.9},
			{"title":"Empty","snippet":"  ","score":1.0}
		]}`)
	}))
	t.Cleanup(server.Close)

	ks, err := NewKnowledgeSearch(KnowledgeConfig{URL: server.URL, Token: "kb-token"}, server.Client())
	if err != nil {
		t.Fatalf("NewKnowledgeSearch() error = %v", err)
	}

	res, err := ks.Invoke(context.Background(), contractx.CapabilityRequest{Utterance: " do you integrate with salesforce? "})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got.Query != "do you integrate with salesforce?" || got.TopK != 3 {
		t.Fatalf("request = %+v", got)
	}
	if res.Answer != "We integrate with Salesforce and HubSpot." || res.Reference != "Integrations" {
		t.Fatalf("Invoke() = %+v", res)
	}
	if res.Capability != contractx.CapabilityKnowledgeSearch {
		t.Fatalf("Capability = %q", res.Capability)
	}
}

func TestKnowledgeSearchStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusServiceUnavailable, false},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		ks, err := NewKnowledgeSearch(KnowledgeConfig{URL: server.URL}, server.Client())
		if err != nil {
			server.Close()
			t.Fatalf("NewKnowledgeSearch() error = %v", err)
		}
		_, err = ks.Invoke(context.Background(), contractx.CapabilityRequest{Utterance: "pricing?"})
		server.Close()

		if !errors.Is(err, ErrUpstreamStatus) {
			t.Fatalf("status %d: Invoke() error = %v", tc.status, err)
		}
		if resiliencex.IsPermanent(err) != tc.permanent {
			t.Fatalf("status %d: IsPermanent() = %v", tc.status, resiliencex.IsPermanent(err))
		}
	}
}

func TestKnowledgeSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	ks, err := NewKnowledgeSearch(KnowledgeConfig{URL: "http://127.0.0.1:1/search"}, nil)
	if err != nil {
		t.Fatalf("NewKnowledgeSearch() error = %v", err)
	}
	if _, err := ks.Invoke(context.Background(), contractx.CapabilityRequest{Utterance: "  "}); !resiliencex.IsPermanent(err) {
		t.Fatalf("Invoke() error = %v", err)
	}
}

func TestNewKnowledgeSearchValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewKnowledgeSearch(KnowledgeConfig{}, nil); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewKnowledgeSearch(KnowledgeConfig{URL: "not a url"}, nil); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestMeetingBookingInvoke(t *testing.T) {
	t.Parallel()

	meeting := time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)
	var got bookingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprintf(w, `{"booking_id":"bk_42","meeting_time":%q}`, meeting.Format(time.RFC3339))
	}))
	t.Cleanup(server.Close)

	mb, err := NewMeetingBooking(BookingConfig{URL: server.URL}, server.Client())
	if err != nil {
		t.Fatalf("NewMeetingBooking() error = %v", err)
	}

	signals := signalx.Set{TeamSize: &signalx.Measure{Value: 12, Confidence: signalx.ConfidenceStated}}
	res, err := mb.Invoke(context.Background(), contractx.CapabilityRequest{
		ConversationID: "conv-1",
		Phase:          statex.PhaseNextSteps,
		Tier:           qualifyx.TierSalesReady,
		Signals:        signals,
		Now:            time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Reference != "bk_42" || !res.MeetingTime.Equal(meeting) {
		t.Fatalf("Invoke() = %+v", res)
	}
	if got.ConversationID != "conv-1" || got.Tier != "SALES_READY" || got.DurationMinutes != 30 {
		t.Fatalf("request = %+v", got)
	}
	if got.Signals.TeamSizeValue() != 12 {
		t.Fatalf("request team size = %d", got.Signals.TeamSizeValue())
	}
}

func TestMeetingBookingRetriesReuseIdempotencyKey(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		keys []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(IdempotencyHeader))
		n := len(keys)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"booking_id":"bk_7"}`)
	}))
	t.Cleanup(server.Close)

	mb, err := NewMeetingBooking(BookingConfig{URL: server.URL}, server.Client())
	if err != nil {
		t.Fatalf("NewMeetingBooking() error = %v", err)
	}
	executor := resiliencex.NewExecutor(resiliencex.NewRegistry(map[string]resiliencex.BreakerConfig{
		contractx.CapabilityMeetingBooking: {FailureThreshold: 3, RecoveryTimeout: time.Minute},
	}))
	policy := resiliencex.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, DisableJitter: true, AttemptTimeout: time.Second}

	req := contractx.CapabilityRequest{ConversationID: "conv-9", Turn: 4}
	res, err := executor.Do(context.Background(), contractx.CapabilityMeetingBooking, policy, func(ctx context.Context) (any, error) {
		return mb.Invoke(ctx, req)
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(res.Attempts))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 2 || keys[0] != "conv-9:booking:4" || keys[1] != keys[0] {
		t.Fatalf("idempotency keys = %v", keys)
	}
}

func TestBookingConfigPolicy(t *testing.T) {
	t.Parallel()

	retry := resiliencex.Policy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second, AttemptTimeout: 2 * time.Second}

	got := BookingConfig{AttemptTimeout: 8 * time.Second, Retry: retry}.Policy()
	if got.AttemptTimeout != 8*time.Second || got.MaxRetries != 2 {
		t.Fatalf("Policy() = %+v", got)
	}
	if got := (BookingConfig{Retry: retry}).Policy(); got.AttemptTimeout != 2*time.Second {
		t.Fatalf("Policy() without override = %+v", got)
	}
}

func TestMeetingBookingMissingID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"booking_id":""}`)
	}))
	t.Cleanup(server.Close)

	mb, err := NewMeetingBooking(BookingConfig{URL: server.URL}, server.Client())
	if err != nil {
		t.Fatalf("NewMeetingBooking() error = %v", err)
	}
	_, err = mb.Invoke(context.Background(), contractx.CapabilityRequest{ConversationID: "conv-1"})
	if !errors.Is(err, ErrBookingRejected) || !resiliencex.IsPermanent(err) {
		t.Fatalf("Invoke() error = %v", err)
	}
}

type fakePublisher struct {
	destination string
	body        []byte
	headers     map[string]string
	err         error
}

func (f *fakePublisher) Publish(_ context.Context, destination string, body []byte, headers map[string]string) (string, error) {
	f.destination = destination
	f.body = body
	f.headers = headers
	if f.err != nil {
		return "", f.err
	}
	return "msg_1", nil
}

func TestCRMWebhookInvoke(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	crm, err := NewCRMWebhook(CRMConfig{Destination: "https://crm.example.com/leads"}, pub)
	if err != nil {
		t.Fatalf("NewCRMWebhook() error = %v", err)
	}

	res, err := crm.Invoke(context.Background(), contractx.CapabilityRequest{
		ConversationID: "conv-9",
		Phase:          statex.PhaseClosing,
		Tier:           qualifyx.TierNurture,
		Signals:        signalx.Set{Industry: "retail"},
		Now:            time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Reference != "msg_1" || res.Capability != contractx.CapabilityCRMWebhook {
		t.Fatalf("Invoke() = %+v", res)
	}
	if pub.destination != "https://crm.example.com/leads" || pub.headers["X-Conversation-Id"] != "conv-9" {
		t.Fatalf("publish destination=%q headers=%v", pub.destination, pub.headers)
	}

	var lead leadRecord
	if err := json.Unmarshal(pub.body, &lead); err != nil {
		t.Fatalf("unmarshal lead: %v", err)
	}
	if lead.Tier != "NURTURE" || lead.Phase != "CLOSING" || lead.Signals.Industry != "retail" {
		t.Fatalf("lead = %+v", lead)
	}
}

func TestCRMWebhookErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"unauthorized", &qstash.StatusError{StatusCode: http.StatusUnauthorized}, true},
		{"throttled", &qstash.StatusError{StatusCode: http.StatusTooManyRequests}, false},
		{"network", errors.New("connection reset"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			crm, err := NewCRMWebhook(CRMConfig{Destination: "https://crm.example.com/leads"}, &fakePublisher{err: tc.err})
			if err != nil {
				t.Fatalf("NewCRMWebhook() error = %v", err)
			}
			_, err = crm.Invoke(context.Background(), contractx.CapabilityRequest{ConversationID: "c"})
			if err == nil {
				t.Fatal("expected error")
			}
			if resiliencex.IsPermanent(err) != tc.permanent {
				t.Fatalf("IsPermanent() = %v", resiliencex.IsPermanent(err))
			}
		})
	}
}
