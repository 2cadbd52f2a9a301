package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// EventDescriptor links an event type to its topic and payload shape.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a validated outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   PayloadEnvelope
	Payload    any
}

// OrderingKey keeps events of one aggregate in commit order on the topic.
func (r *ResolvedEvent) OrderingKey() string {
	return r.Envelope.AggregateID.String()
}

// Attributes are the Pub/Sub message attributes consumers filter on.
func (r *ResolvedEvent) Attributes(event models.OutboxEvent) map[string]string {
	return map[string]string{
		"event_id":       r.Envelope.EventID,
		"event_type":     string(event.EventType),
		"event_version":  fmt.Sprint(r.Envelope.Version),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"occurred_at":    r.Envelope.OccurredAt.Format(time.RFC3339Nano),
	}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the publisher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

var payloadFactories = map[enums.OutboxEventType]func() any{
	enums.EventOrderCreated:       func() any { return &OrderCreatedEvent{} },
	enums.EventOrderStatusChanged: func() any { return &OrderStatusChangedEvent{} },
	enums.EventCartExpired:        func() any { return &CartExpiredEvent{} },
}

// NewEventRegistry routes every storefront event to the domain topic.
func NewEventRegistry(domainTopic string) (*EventRegistry, error) {
	if domainTopic == "" {
		return nil, errors.New("domain topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(payloadFactories))}
	for eventType, factory := range payloadFactories {
		reg.entries[eventType] = EventDescriptor{EventType: eventType, Topic: domainTopic, PayloadFactory: factory}
	}
	return reg, nil
}

// Resolve validates the row against its event type and decodes the typed
// payload. Every failure is non-retryable: the row will never get better.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if want := event.EventType.Aggregate(); want != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", want, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	if envelope.AggregateID == uuid.Nil {
		envelope.AggregateID = event.AggregateID
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
