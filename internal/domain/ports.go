package domain

import "context"

// EntityStore is the Fetch Port: the abstract data-access boundary the
// resolver and orchestrator depend on. The surrounding system binds it to a
// REST backend; this repo ships an embedded SQLite binding. Implementations
// return *Rejection with ReasonNotFound for missing records,
// ReasonConcurrentModification for stale writes, and ReasonUpstreamUnavailable
// for transport failures.
type EntityStore interface {
	GetByID(ctx context.Context, t EntityType, id string) (Record, error)
	List(ctx context.Context, t EntityType) ([]Record, error)
	Create(ctx context.Context, t EntityType, rec Record) error
	Update(ctx context.Context, t EntityType, rec Record) error
	Delete(ctx context.Context, t EntityType, id string) error
}

// EventPublisher emits an applied lifecycle transition. The record is a
// snapshot taken after the transition was persisted.
type EventPublisher interface {
	Publish(ctx context.Context, t EntityType, transition string, rec Record) error
}

// TransitionValidator answers whether a named transition is legal from the
// current state of one state field, returning the destination state. The
// looplab/fsm adapter implements this against the schema's transition table.
type TransitionValidator interface {
	Apply(ctx context.Context, t EntityType, field, current, transition string) (string, error)
}
