package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/openauto/dealerdesk/internal/adapter/sqlite"
	"github.com/openauto/dealerdesk/internal/domain"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *sqlite.RecordStore {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreate(t *testing.T, store *sqlite.RecordStore, et domain.EntityType, rec domain.Record) {
	t.Helper()
	if err := store.Create(context.Background(), et, rec); err != nil {
		t.Fatalf("mustCreate failed: %v", err)
	}
}

func TestCreate_And_GetByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := domain.Record{
		"id":          "ord-1",
		"customerId":  "cus-1",
		"status":      domain.OrderConfirmed,
		"totalAmount": float64(490_000_000),
	}
	if err := store.Create(ctx, domain.EntityOrder, rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByID(ctx, domain.EntityOrder, "ord-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.ID() != "ord-1" {
		t.Errorf("ID = %q, want %q", got.ID(), "ord-1")
	}
	if got.Str("customerId") != "cus-1" {
		t.Errorf("customerId = %q, want %q", got.Str("customerId"), "cus-1")
	}
	if got.Num("totalAmount") != 490_000_000 {
		t.Errorf("totalAmount = %v, want 490000000", got.Num("totalAmount"))
	}
	if got.Num(domain.FieldVersion) != 1 {
		t.Errorf("version = %v, want 1", got.Num(domain.FieldVersion))
	}
}

func TestGetByID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), domain.EntityOrder, "nonexistent")
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
	if rej.Reason != domain.ReasonNotFound {
		t.Errorf("reason = %q, want %q", rej.Reason, domain.ReasonNotFound)
	}
	if rej.ID != "nonexistent" {
		t.Errorf("id = %q, want %q", rej.ID, "nonexistent")
	}
}

func TestGetByID_TypeIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, domain.EntityOrder, domain.Record{"id": "x-1"})

	// Same id under a different entity type does not exist.
	_, err := store.GetByID(ctx, domain.EntityQuotation, "x-1")
	var rej *domain.Rejection
	if !errors.As(err, &rej) || rej.Reason != domain.ReasonNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, domain.EntityOrder, domain.Record{"id": "ord-1"})

	err := store.Create(ctx, domain.EntityOrder, domain.Record{"id": "ord-1"})
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
	if rej.Reason != domain.ReasonConcurrentModification {
		t.Errorf("reason = %q, want %q", rej.Reason, domain.ReasonConcurrentModification)
	}
}

func TestUpdate_BumpsVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := domain.Record{"id": "q-1", "status": domain.QuotationPending}
	mustCreate(t, store, domain.EntityQuotation, rec)

	rec["status"] = domain.QuotationSent
	if err := store.Update(ctx, domain.EntityQuotation, rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, domain.EntityQuotation, "q-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Str("status") != domain.QuotationSent {
		t.Errorf("status = %q, want %q", got.Str("status"), domain.QuotationSent)
	}
	if got.Num(domain.FieldVersion) != 2 {
		t.Errorf("version = %v, want 2", got.Num(domain.FieldVersion))
	}
}

func TestUpdate_StaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := domain.Record{"id": "q-1", "status": domain.QuotationPending}
	mustCreate(t, store, domain.EntityQuotation, rec)

	first, _ := store.GetByID(ctx, domain.EntityQuotation, "q-1")
	second, _ := store.GetByID(ctx, domain.EntityQuotation, "q-1")

	first["status"] = domain.QuotationSent
	if err := store.Update(ctx, domain.EntityQuotation, first); err != nil {
		t.Fatalf("first Update failed: %v", err)
	}

	second["status"] = domain.QuotationRejected
	err := store.Update(ctx, domain.EntityQuotation, second)
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
	if rej.Reason != domain.ReasonConcurrentModification {
		t.Errorf("reason = %q, want %q", rej.Reason, domain.ReasonConcurrentModification)
	}

	// The losing write left the winner's state intact.
	got, _ := store.GetByID(ctx, domain.EntityQuotation, "q-1")
	if got.Str("status") != domain.QuotationSent {
		t.Errorf("status = %q, want %q", got.Str("status"), domain.QuotationSent)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(context.Background(), domain.EntityOrder, domain.Record{"id": "nonexistent"})
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
	if rej.Reason != domain.ReasonNotFound {
		t.Errorf("reason = %q, want %q", rej.Reason, domain.ReasonNotFound)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, domain.EntityQuotation, domain.Record{"id": "q-1"})

	if err := store.Delete(ctx, domain.EntityQuotation, "q-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := store.GetByID(ctx, domain.EntityQuotation, "q-1")
	var rej *domain.Rejection
	if !errors.As(err, &rej) || rej.Reason != domain.ReasonNotFound {
		t.Fatalf("expected not_found after delete, got %v", err)
	}

	err = store.Delete(ctx, domain.EntityQuotation, "q-1")
	if !errors.As(err, &rej) || rej.Reason != domain.ReasonNotFound {
		t.Fatalf("expected not_found on second delete, got %v", err)
	}
}

func TestList_FiltersByType(t *testing.T) {
	store := newTestStore(t)

	for i := range 3 {
		mustCreate(t, store, domain.EntityPayment, domain.Record{
			"id":      fmt.Sprintf("pay-%d", i),
			"orderId": "ord-1",
			"amount":  float64(1_000_000 * (i + 1)),
		})
	}
	mustCreate(t, store, domain.EntityOrder, domain.Record{"id": "ord-1"})

	payments, err := store.List(context.Background(), domain.EntityPayment)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("got %d payments, want 3", len(payments))
	}
	for _, p := range payments {
		if p.Str("orderId") != "ord-1" {
			t.Errorf("orderId = %q, want %q", p.Str("orderId"), "ord-1")
		}
	}
}

func TestList_Empty(t *testing.T) {
	store := newTestStore(t)

	recs, err := store.List(context.Background(), domain.EntityDelivery)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}

func TestNestedDocumentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := domain.Record{
		"id": "q-1",
		"customer": map[string]any{
			"id":   "cus-1",
			"name": "Nguyen Van A",
		},
		"items": []any{"a", "b"},
	}
	mustCreate(t, store, domain.EntityQuotation, rec)

	got, err := store.GetByID(ctx, domain.EntityQuotation, "q-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	customer, ok := got["customer"].(map[string]any)
	if !ok {
		t.Fatalf("customer = %T, want map", got["customer"])
	}
	if customer["name"] != "Nguyen Van A" {
		t.Errorf("customer.name = %v, want Nguyen Van A", customer["name"])
	}
}
