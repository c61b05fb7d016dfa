package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openauto/dealerdesk/internal/domain"
)

const tracerName = "github.com/openauto/dealerdesk/internal/adapter/otel"

// TracingStore wraps a domain.EntityStore with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingStore struct {
	next   domain.EntityStore
	tracer trace.Tracer
}

// Compile-time check: TracingStore implements domain.EntityStore.
var _ domain.EntityStore = (*TracingStore)(nil)

// NewTracingStore creates a tracing decorator around the given store.
func NewTracingStore(next domain.EntityStore) *TracingStore {
	return &TracingStore{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingStore) GetByID(ctx context.Context, t domain.EntityType, id string) (domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, "EntityStore.GetByID",
		trace.WithAttributes(
			attribute.String("entity.type", string(t)),
			attribute.String("entity.id", id),
		),
	)
	defer span.End()

	rec, err := s.next.GetByID(ctx, t, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return rec, err
}

func (s *TracingStore) List(ctx context.Context, t domain.EntityType) ([]domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, "EntityStore.List",
		trace.WithAttributes(attribute.String("entity.type", string(t))),
	)
	defer span.End()

	recs, err := s.next.List(ctx, t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(recs)))
	}
	return recs, err
}

func (s *TracingStore) Create(ctx context.Context, t domain.EntityType, rec domain.Record) error {
	ctx, span := s.tracer.Start(ctx, "EntityStore.Create",
		trace.WithAttributes(
			attribute.String("entity.type", string(t)),
			attribute.String("entity.id", rec.ID()),
		),
	)
	defer span.End()

	err := s.next.Create(ctx, t, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) Update(ctx context.Context, t domain.EntityType, rec domain.Record) error {
	ctx, span := s.tracer.Start(ctx, "EntityStore.Update",
		trace.WithAttributes(
			attribute.String("entity.type", string(t)),
			attribute.String("entity.id", rec.ID()),
		),
	)
	defer span.End()

	err := s.next.Update(ctx, t, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *TracingStore) Delete(ctx context.Context, t domain.EntityType, id string) error {
	ctx, span := s.tracer.Start(ctx, "EntityStore.Delete",
		trace.WithAttributes(
			attribute.String("entity.type", string(t)),
			attribute.String("entity.id", id),
		),
	)
	defer span.End()

	err := s.next.Delete(ctx, t, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
