package app

import (
	"context"

	"github.com/openauto/dealerdesk/internal/domain"
)

// Read-side queries. Each loads the root record and expands its declared
// references into embedded documents; resolution is best effort, so a view
// never fails because a related record could not be fetched.

func (w *Workflow) GetQuotationView(ctx context.Context, id string) (domain.Record, error) {
	return w.view(ctx, domain.EntityQuotation, id)
}

func (w *Workflow) GetOrderView(ctx context.Context, id string) (domain.Record, error) {
	return w.view(ctx, domain.EntityOrder, id)
}

func (w *Workflow) GetAppointmentView(ctx context.Context, id string) (domain.Record, error) {
	return w.view(ctx, domain.EntityAppointment, id)
}

func (w *Workflow) GetDeliveryView(ctx context.Context, id string) (domain.Record, error) {
	return w.view(ctx, domain.EntityDelivery, id)
}

func (w *Workflow) view(ctx context.Context, t domain.EntityType, id string) (domain.Record, error) {
	rec, err := w.load(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if t == domain.EntityQuotation {
		// Expiry is decided eagerly on read, never persisted here.
		rec = rec.Clone()
		rec[domain.FieldStatus] = domain.QuotationEffectiveStatus(rec, w.now())
	}
	return w.resolver.Resolve(ctx, t, rec), nil
}
