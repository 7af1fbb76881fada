// Package events defines the lifecycle events published by the catalog and
// group index, consumed by the reconciliation worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/mq"
)

// Event types emitted on the lifecycle topic.
const (
	FormCreated       = "form.created"
	FormDeleted       = "form.deleted"
	FormCreatePartial = "form.create.partial_failure"
	GroupRenamed      = "group.renamed"
	MembershipRemoved = "membership.removed"
)

// Event is the wire payload for every lifecycle notification.
type Event struct {
	Type       string    `json:"type"`
	FormID     string    `json:"formId,omitempty"`
	SystemName string    `json:"systemName,omitempty"`
	Group      string    `json:"group,omitempty"`
	NewGroup   string    `json:"newGroup,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits lifecycle events. A nil Publisher drops everything, which
// keeps event emission optional in tests and unbrokered deployments.
type Publisher struct {
	producer *mq.Producer
}

// NewPublisher wraps a Kafka producer.
func NewPublisher(producer *mq.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// Publish marshals and sends the event keyed by form id (falling back to the
// group name for group-scoped events).
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.producer == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}

	key := event.FormID
	if key == "" {
		key = event.Group
	}
	return p.producer.Publish(ctx, key, payload, map[string]string{
		"event_type": event.Type,
	})
}

// Decode parses an event from a consumed message payload.
func Decode(value []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return Event{}, fmt.Errorf("events: decode: %w", err)
	}
	return event, nil
}
