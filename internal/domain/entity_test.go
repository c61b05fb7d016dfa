package domain

import (
	"testing"
	"time"
)

func TestRecordHelpers(t *testing.T) {
	rec := Record{
		"id":     "q-1",
		"count":  3,
		"amount": 12.5,
		"when":   "2025-06-01T10:00:00Z",
		"empty":  nil,
	}

	if rec.ID() != "q-1" {
		t.Errorf("ID = %q", rec.ID())
	}
	if rec.Str("missing") != "" {
		t.Errorf("missing Str = %q, want empty", rec.Str("missing"))
	}
	if rec.Num("count") != 3 || rec.Num("amount") != 12.5 {
		t.Errorf("Num: count=%v amount=%v", rec.Num("count"), rec.Num("amount"))
	}
	if rec.Num("id") != 0 {
		t.Errorf("non-numeric Num = %v, want 0", rec.Num("id"))
	}

	when, ok := rec.Time("when")
	if !ok || when.Hour() != 10 {
		t.Errorf("Time = %v, %v", when, ok)
	}
	if _, ok := rec.Time("id"); ok {
		t.Error("non-timestamp string parsed as time")
	}

	if rec.Has("empty") {
		t.Error("nil value must not count as present")
	}
	if !rec.Has("count") {
		t.Error("count must count as present")
	}
}

func TestRecordClone(t *testing.T) {
	rec := Record{"id": "a", "status": "PENDING"}
	c := rec.Clone()
	c["status"] = "SENT"

	if rec.Str("status") != "PENDING" {
		t.Error("clone mutated the original")
	}
	if Record(nil).Clone() != nil {
		t.Error("nil clone must stay nil")
	}
}

func TestNewQuotation(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	q := NewQuotation("q-1", "cus-1", "var-1", "col-1", 500_000_000, 10_000_000, 30, now)

	if q.Str(FieldStatus) != QuotationPending {
		t.Errorf("status = %q, want PENDING", q.Str(FieldStatus))
	}
	if q.Num("finalPrice") != 490_000_000 {
		t.Errorf("finalPrice = %v, want 490000000", q.Num("finalPrice"))
	}
	expiry, ok := q.Time(FieldExpiry)
	if !ok || !expiry.Equal(now.AddDate(0, 0, 30)) {
		t.Errorf("expiry = %v, want issue + 30d", expiry)
	}
}

func TestNewQuotation_DiscountExceedsPrice(t *testing.T) {
	q := NewQuotation("q-1", "c", "v", "col", 100, 150, 30, time.Now())
	if q.Num("finalPrice") != 0 {
		t.Errorf("finalPrice = %v, must clamp at zero", q.Num("finalPrice"))
	}
}

func TestNewOrderFromQuotation(t *testing.T) {
	now := time.Now()
	q := NewQuotation("q-1", "cus-1", "var-1", "col-1", 500_000_000, 10_000_000, 30, now)
	o := NewOrderFromQuotation("ord-1", q, now)

	if o.Str(FieldStatus) != OrderConfirmed {
		t.Errorf("status = %q, want confirmed", o.Str(FieldStatus))
	}
	if o.Str(FieldPaymentStatus) != PayPending || o.Str(FieldDeliveryStatus) != DeliveryPending {
		t.Errorf("axes = %q/%q, want PENDING/PENDING", o.Str(FieldPaymentStatus), o.Str(FieldDeliveryStatus))
	}
	if o.Num("totalAmount") != 490_000_000 || o.Num("balanceAmount") != 490_000_000 {
		t.Errorf("amounts = %v/%v, want the quoted final price", o.Num("totalAmount"), o.Num("balanceAmount"))
	}
	if o.Str("quotationId") != "q-1" || o.Str("customerId") != "cus-1" {
		t.Errorf("references not carried: %v", o)
	}
}

func TestNewDeliveryDraft(t *testing.T) {
	order := Record{
		"id": "ord-1", "inventoryId": "inv-9", "deliveryAddress": "72 Nguyễn Huệ",
	}
	d := NewDeliveryDraft("del-1", order, time.Now())

	if d.Str(FieldStatus) != DeliveryPending {
		t.Errorf("status = %q, want PENDING", d.Str(FieldStatus))
	}
	if d.Str("orderId") != "ord-1" || d.Str("inventoryId") != "inv-9" {
		t.Errorf("references not carried: %v", d)
	}
	if d.Str("deliveryAddress") != "72 Nguyễn Huệ" {
		t.Errorf("address = %q", d.Str("deliveryAddress"))
	}

	bare := NewDeliveryDraft("del-2", Record{"id": "ord-2"}, time.Now())
	if bare.Has("inventoryId") || bare.Has("deliveryAddress") {
		t.Errorf("optional fields must be omitted, not empty: %v", bare)
	}
}

func TestNewDeliveryAppointment(t *testing.T) {
	date := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	a := NewDeliveryAppointment("apt-1", "ord-1", date, "123 Lê Lợi")

	if a.Str("type") != AppointmentTypeDelivery {
		t.Errorf("type = %q, want delivery", a.Str("type"))
	}
	if a.Str(FieldStatus) != AppointmentScheduled {
		t.Errorf("status = %q, want SCHEDULED", a.Str(FieldStatus))
	}
	got, ok := a.Time("appointmentDate")
	if !ok || !got.Equal(date) {
		t.Errorf("appointmentDate = %v", got)
	}
}
