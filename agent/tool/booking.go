package tool

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
)

// BookingConfig is read from BOOKING_* variables. Booking tolerates a longer
// attempt than a lookup: AttemptTimeout replaces Retry.AttemptTimeout.
type BookingConfig struct {
	URL            string                    `split_words:"true"`
	Token          string                    `split_words:"true"`
	Duration       time.Duration             `split_words:"true" default:"30m"`
	AttemptTimeout time.Duration             `split_words:"true" default:"8s"`
	Retry          resiliencex.Policy        `split_words:"true"`
	Breaker        resiliencex.BreakerConfig `split_words:"true"`
}

// Policy is the retry policy for booking calls.
func (c BookingConfig) Policy() resiliencex.Policy {
	p := c.Retry
	if c.AttemptTimeout > 0 {
		p.AttemptTimeout = c.AttemptTimeout
	}
	return p
}

// IdempotencyHeader carries a key that is stable across retries of one
// booking turn, so the calendar can drop duplicate bookings.
const IdempotencyHeader = "Idempotency-Key"

func bookingKey(req contractx.CapabilityRequest) string {
	return fmt.Sprintf("%s:booking:%d", req.ConversationID, req.Turn)
}

type bookingRequest struct {
	ConversationID  string      `json:"conversation_id"`
	Tier            string      `json:"tier"`
	Signals         signalx.Set `json:"signals"`
	DurationMinutes int         `json:"duration_minutes"`
	RequestedAt     time.Time   `json:"requested_at"`
}

type bookingResponse struct {
	BookingID   string    `json:"booking_id"`
	MeetingTime time.Time `json:"meeting_time"`
}

var ErrBookingRejected = errors.New("booking response missing booking id")

// MeetingBooking books a sales meeting through a calendar webhook.
type MeetingBooking struct {
	endpoint   string
	token      string
	duration   time.Duration
	httpClient *http.Client
}

func NewMeetingBooking(cfg BookingConfig, client *http.Client) (*MeetingBooking, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("booking webhook url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	duration := cfg.Duration
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	return &MeetingBooking{
		endpoint:   endpoint,
		token:      cfg.Token,
		duration:   duration,
		httpClient: client,
	}, nil
}

func (b *MeetingBooking) Name() string {
	return contractx.CapabilityMeetingBooking
}

func (b *MeetingBooking) Invoke(ctx context.Context, req contractx.CapabilityRequest) (contractx.CapabilityResult, error) {
	body := bookingRequest{
		ConversationID:  req.ConversationID,
		Tier:            string(req.Tier),
		Signals:         req.Signals,
		DurationMinutes: int(b.duration / time.Minute),
		RequestedAt:     req.Now.UTC(),
	}

	header := http.Header{}
	header.Set(IdempotencyHeader, bookingKey(req))

	var resp bookingResponse
	if err := postJSON(ctx, b.httpClient, b.endpoint, b.token, header, body, &resp); err != nil {
		return contractx.CapabilityResult{}, err
	}
	if strings.TrimSpace(resp.BookingID) == "" {
		return contractx.CapabilityResult{}, resiliencex.Permanent(ErrBookingRejected)
	}

	return contractx.CapabilityResult{
		Capability:  b.Name(),
		Reference:   resp.BookingID,
		MeetingTime: resp.MeetingTime,
	}, nil
}
