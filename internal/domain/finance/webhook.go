package finance

import (
	"time"

	"github.com/rentals/backend/internal/domain/shared"
)

// WebhookEventStatus tracks an inbound event through
// received → validated → applied → processed | failed
type WebhookEventStatus string

const (
	WebhookEventReceived  WebhookEventStatus = "received"
	WebhookEventValidated WebhookEventStatus = "validated"
	WebhookEventApplied   WebhookEventStatus = "applied"
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// IsTerminal returns true once the event has been fully handled
func (s WebhookEventStatus) IsTerminal() bool {
	return s == WebhookEventProcessed || s == WebhookEventFailed
}

var webhookTransitions = map[WebhookEventStatus][]WebhookEventStatus{
	WebhookEventReceived:  {WebhookEventValidated},
	WebhookEventValidated: {WebhookEventApplied, WebhookEventProcessed, WebhookEventFailed},
	WebhookEventApplied:   {WebhookEventProcessed, WebhookEventFailed},
}

// CanTransitionTo reports whether next is a legal successor of s
func (s WebhookEventStatus) CanTransitionTo(next WebhookEventStatus) bool {
	for _, allowed := range webhookTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WebhookEvent is the durable record of one inbound gateway event, keyed by
// DedupKey so redeliveries find the earlier attempt.
type WebhookEvent struct {
	shared.BaseAggregateRoot
	Provider      string
	EventType     string
	Reference     string
	DedupKey      string
	SchemaVersion int
	Payload       []byte
	Status        WebhookEventStatus
	FailureReason string
	Attempts      int
	ProcessedAt   *time.Time
}

// NewWebhookEvent records a received payload
func NewWebhookEvent(provider string, payload *WebhookPayload, raw []byte) *WebhookEvent {
	return &WebhookEvent{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Provider:          provider,
		EventType:         payload.Event,
		Reference:         payload.Reference,
		DedupKey:          payload.DedupKey(provider),
		SchemaVersion:     payload.SchemaVersion,
		Payload:           raw,
		Status:            WebhookEventReceived,
	}
}

func (e *WebhookEvent) transition(next WebhookEventStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return ErrInvalidTransition.WithMessage("Webhook event cannot move from " + string(e.Status) + " to " + string(next))
	}
	e.Status = next
	e.Touch()
	return nil
}

// MarkValidated records that signature and schema checks passed
func (e *WebhookEvent) MarkValidated() error {
	return e.transition(WebhookEventValidated)
}

// MarkApplied records that ledger effects are being written
func (e *WebhookEvent) MarkApplied() error {
	e.Attempts++
	return e.transition(WebhookEventApplied)
}

// MarkProcessed closes the event successfully
func (e *WebhookEvent) MarkProcessed(at time.Time) error {
	if err := e.transition(WebhookEventProcessed); err != nil {
		return err
	}
	e.ProcessedAt = &at
	return nil
}

// MarkFailed closes the event without ledger effects
func (e *WebhookEvent) MarkFailed(reason string, at time.Time) error {
	if err := e.transition(WebhookEventFailed); err != nil {
		return err
	}
	e.FailureReason = reason
	e.ProcessedAt = &at
	return nil
}
