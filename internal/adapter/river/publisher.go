package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/openauto/dealerdesk/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// EventJobArgs carries the data needed to process a lifecycle transition
// asynchronously. River serializes this as JSON into its job queue table. It
// includes a snapshot of the record's state fields taken after the transition
// was persisted, so the worker never needs to query the store.
type EventJobArgs struct {
	Entity         string `json:"entity"`
	EntityID       string `json:"entity_id"`
	Transition     string `json:"transition"`
	Status         string `json:"status,omitempty"`
	PaymentStatus  string `json:"payment_status,omitempty"`
	DeliveryStatus string `json:"delivery_status,omitempty"`
	OrderID        string `json:"order_id,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "lifecycle.transitioned" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues an applied transition as an async job in River.
func (p *Publisher) Publish(ctx context.Context, t domain.EntityType, transition string, rec domain.Record) error {
	_, err := p.client.Insert(ctx, EventJobArgs{
		Entity:         string(t),
		EntityID:       rec.ID(),
		Transition:     transition,
		Status:         rec.Str(domain.FieldStatus),
		PaymentStatus:  rec.Str(domain.FieldPaymentStatus),
		DeliveryStatus: rec.Str(domain.FieldDeliveryStatus),
		OrderID:        rec.Str("orderId"),
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}
