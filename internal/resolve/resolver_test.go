package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/openauto/dealerdesk/internal/domain"
)

type fetchKey struct {
	t  domain.EntityType
	id string
}

// countingStore is a read-only EntityStore that records every call.
type countingStore struct {
	mu       sync.Mutex
	records  map[fetchKey]domain.Record
	failGets map[fetchKey]error
	failList map[domain.EntityType]error
	gets     int
	lists    int
}

func newCountingStore() *countingStore {
	return &countingStore{
		records:  make(map[fetchKey]domain.Record),
		failGets: make(map[fetchKey]error),
		failList: make(map[domain.EntityType]error),
	}
}

func (s *countingStore) add(t domain.EntityType, rec domain.Record) {
	s.records[fetchKey{t, rec.ID()}] = rec
}

func (s *countingStore) GetByID(_ context.Context, t domain.EntityType, id string) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	k := fetchKey{t, id}
	if err, ok := s.failGets[k]; ok {
		return nil, err
	}
	rec, ok := s.records[k]
	if !ok {
		return nil, domain.NotFound(t, id)
	}
	return rec.Clone(), nil
}

func (s *countingStore) List(_ context.Context, t domain.EntityType) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if err, ok := s.failList[t]; ok {
		return nil, err
	}
	var out []domain.Record
	for k, rec := range s.records {
		if k.t == t {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *countingStore) Create(context.Context, domain.EntityType, domain.Record) error {
	return errors.New("read-only store")
}
func (s *countingStore) Update(context.Context, domain.EntityType, domain.Record) error {
	return errors.New("read-only store")
}
func (s *countingStore) Delete(context.Context, domain.EntityType, string) error {
	return errors.New("read-only store")
}

func embedded(t *testing.T, rec domain.Record, field string) domain.Record {
	t.Helper()
	sub := asRecord(rec[field])
	if sub == nil {
		t.Fatalf("field %q not embedded: %v", field, rec[field])
	}
	return sub
}

func TestResolve_EmbedsDeclaredReferences(t *testing.T) {
	store := newCountingStore()
	store.add(domain.EntityCustomer, domain.Record{"id": "cus-1", "fullName": "Nguyen Van A"})
	store.add(domain.EntityColor, domain.Record{"id": "col-1", "name": "Đỏ"})
	store.add(domain.EntityModel, domain.Record{"id": "mod-1", "name": "CX-5", "brandId": "br-1"})
	store.add(domain.EntityBrand, domain.Record{"id": "br-1", "name": "Mazda"})
	store.add(domain.EntityVariant, domain.Record{"id": "var-1", "name": "Premium", "modelId": "mod-1"})

	q := domain.Record{
		"id": "q-1", "customerId": "cus-1", "variantId": "var-1", "colorId": "col-1",
		"status": domain.QuotationPending,
	}

	out := New(store).Resolve(context.Background(), domain.EntityQuotation, q)

	customer := embedded(t, out, "customer")
	if customer.Str("fullName") != "Nguyen Van A" {
		t.Errorf("customer.fullName = %q", customer.Str("fullName"))
	}
	variant := embedded(t, out, "variant")
	model := embedded(t, variant, "model")
	brand := embedded(t, model, "brand")
	if brand.Str("name") != "Mazda" {
		t.Errorf("variant.model.brand.name = %q, nested references not resolved", brand.Str("name"))
	}

	// The input record is never mutated.
	if q.Has("customer") {
		t.Error("input record was mutated")
	}
}

func TestResolve_CompleteEmbedMeansZeroFetches(t *testing.T) {
	store := newCountingStore()
	q := domain.Record{
		"id":         "q-1",
		"customerId": "cus-1",
		"customer":   map[string]any{"id": "cus-1", "fullName": "Tran B"},
	}

	out := New(store).Resolve(context.Background(), domain.EntityQuotation, q)

	if store.gets != 0 || store.lists != 0 {
		t.Errorf("got %d gets, %d lists; an already-complete embed must not refetch", store.gets, store.lists)
	}
	if embedded(t, out, "customer").Str("fullName") != "Tran B" {
		t.Error("embedded customer lost")
	}
}

func TestResolve_CycleTerminates(t *testing.T) {
	store := newCountingStore()
	store.add(domain.EntityQuotation, domain.Record{"id": "q-1", "orderId": "ord-1", "status": domain.QuotationConverted})
	store.add(domain.EntityOrder, domain.Record{"id": "ord-1", "quotationId": "q-1", "status": domain.OrderConfirmed})

	q, _ := store.GetByID(context.Background(), domain.EntityQuotation, "q-1")
	out := New(store).Resolve(context.Background(), domain.EntityQuotation, q)

	order := embedded(t, out, "order")
	if order.ID() != "ord-1" {
		t.Fatalf("order.id = %q", order.ID())
	}
	// The walk bottoms out at the depth budget instead of recursing forever;
	// the cache keeps the repeated hops from refetching.
	if store.gets > 6 {
		t.Errorf("%d fetches for a two-node cycle, cache not consulted", store.gets)
	}
}

func TestResolve_GetFailureFallsBackToList(t *testing.T) {
	store := newCountingStore()
	store.add(domain.EntityCustomer, domain.Record{"id": "cus-1", "fullName": "Le C"})
	store.failGets[fetchKey{domain.EntityCustomer, "cus-1"}] = errors.New("404 page not found")

	q := domain.Record{"id": "q-1", "customerId": "cus-1"}
	out := New(store).Resolve(context.Background(), domain.EntityQuotation, q)

	if embedded(t, out, "customer").Str("fullName") != "Le C" {
		t.Error("list fallback did not recover the record")
	}
	if store.lists != 1 {
		t.Errorf("lists = %d, want 1", store.lists)
	}
}

func TestResolve_TotalFailureDegradesToAbsentField(t *testing.T) {
	store := newCountingStore()
	store.failGets[fetchKey{domain.EntityCustomer, "cus-1"}] = errors.New("boom")
	store.failList[domain.EntityCustomer] = errors.New("boom")

	q := domain.Record{"id": "q-1", "customerId": "cus-1", "status": domain.QuotationPending}
	out := New(store).Resolve(context.Background(), domain.EntityQuotation, q)

	if out.Has("customer") {
		t.Error("unresolvable reference must stay absent, not error")
	}
	if out.Str("customerId") != "cus-1" {
		t.Error("the bare id must survive")
	}
}

func TestResolve_MergeNeverOverwrites(t *testing.T) {
	store := newCountingStore()
	store.add(domain.EntityCustomer, domain.Record{"id": "cus-1", "fullName": "Stored Name", "phone": "0901"})

	// A partial embed missing its id forces a fetch; local fields win.
	q := domain.Record{
		"id":         "q-1",
		"customerId": "cus-1",
		"customer":   map[string]any{"fullName": "Edited Name"},
	}
	out := New(store).Resolve(context.Background(), domain.EntityQuotation, q)

	customer := embedded(t, out, "customer")
	if customer.Str("fullName") != "Edited Name" {
		t.Errorf("fullName = %q, fetch overwrote a local edit", customer.Str("fullName"))
	}
	if customer.Str("phone") != "0901" {
		t.Errorf("phone = %q, missing fields must be filled in", customer.Str("phone"))
	}
}

func TestResolve_MultiValuedReference(t *testing.T) {
	store := newCountingStore()
	store.add(domain.EntityColor, domain.Record{"id": "col-1", "name": "Đỏ"})
	store.add(domain.EntityColor, domain.Record{"id": "col-2", "name": "Trắng"})

	v := domain.Record{"id": "var-1", "colorIds": []any{"col-1", "col-2", "col-missing"}}
	out := New(store).Resolve(context.Background(), domain.EntityVariant, v)

	colors, ok := out["colors"].([]domain.Record)
	if !ok {
		t.Fatalf("colors not embedded: %T", out["colors"])
	}
	// The missing id degrades to absence; the resolvable ones survive.
	if len(colors) != 2 {
		t.Fatalf("got %d colors, want 2", len(colors))
	}
}

func TestResolve_NilAndZeroBudget(t *testing.T) {
	r := New(newCountingStore())
	if out := r.Resolve(context.Background(), domain.EntityOrder, nil); out != nil {
		t.Error("nil in, nil out")
	}

	rec := domain.Record{"id": "ord-1", "customerId": "cus-1"}
	out := r.ResolveWith(context.Background(), NewCache(), domain.EntityOrder, rec, 0)
	if out.Has("customer") {
		t.Error("a zero budget must not resolve anything")
	}
}
