package domain

import "time"

// EntityType identifies one kind of business object. Every component keys its
// behavior off this type through the schema tables; nothing special-cases an
// entity outside them.
type EntityType string

const (
	EntityCustomer    EntityType = "customer"
	EntityBrand       EntityType = "brand"
	EntityModel       EntityType = "model"
	EntityVariant     EntityType = "variant"
	EntityColor       EntityType = "color"
	EntityInventory   EntityType = "inventory"
	EntityQuotation   EntityType = "quotation"
	EntityOrder       EntityType = "order"
	EntityPayment     EntityType = "payment"
	EntityAppointment EntityType = "appointment"
	EntityDelivery    EntityType = "delivery"
)

// Record is the sparse wire shape the backend returns: a JSON object whose
// foreign keys are bare ids until the resolver embeds the referenced entities.
type Record map[string]any

// Commonly accessed fields. State fields are declared in schema.go.
const (
	FieldID        = "id"
	FieldVersion   = "version"
	FieldIssueDate = "issueDate"
	FieldExpiry    = "expiryDate"
)

// ID returns the record's id, or "" when absent.
func (r Record) ID() string { return r.Str(FieldID) }

// Str returns a string field, or "" when absent or not a string.
func (r Record) Str(field string) string {
	s, _ := r[field].(string)
	return s
}

// Num returns a numeric field as float64. JSON decoding yields float64, but
// records built in Go may carry int values, so both are accepted.
func (r Record) Num(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Time parses a timestamp field. Accepts time.Time values and RFC 3339 strings.
func (r Record) Time(field string) (time.Time, bool) {
	switch v := r[field].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Has reports whether a field is present and non-nil.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// Clone returns a shallow copy. Embedded records are shared; callers that
// mutate nested data must clone the nested record themselves.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

const timeFormat = time.RFC3339

// NewQuotation builds a quotation in the initial PENDING state. The final
// price is derived, never stored independently of its inputs.
func NewQuotation(id, customerID, variantID, colorID string, totalPrice, discountAmount float64, validityDays int, now time.Time) Record {
	final := totalPrice - discountAmount
	if final < 0 {
		final = 0
	}
	return Record{
		FieldID:          id,
		"customerId":     customerID,
		"variantId":      variantID,
		"colorId":        colorID,
		"totalPrice":     totalPrice,
		"discountAmount": discountAmount,
		"finalPrice":     final,
		"validityDays":   validityDays,
		FieldIssueDate:   now.UTC().Format(timeFormat),
		FieldExpiry:      now.UTC().AddDate(0, 0, validityDays).Format(timeFormat),
		FieldStatus:      QuotationPending,
	}
}

// NewOrderFromQuotation materializes the order an accepted quotation commits
// to. The order starts life confirmed; its total is the quotation's final
// price and nothing has been paid yet.
func NewOrderFromQuotation(id string, quotation Record, now time.Time) Record {
	total := quotation.Num("finalPrice")
	return Record{
		FieldID:             id,
		"customerId":        quotation.Str("customerId"),
		"quotationId":       quotation.ID(),
		"totalAmount":       total,
		"depositAmount":     float64(0),
		"balanceAmount":     total,
		FieldStatus:         OrderConfirmed,
		FieldPaymentStatus:  PayPending,
		FieldDeliveryStatus: DeliveryPending,
		"createdAt":         now.UTC().Format(timeFormat),
	}
}

// NewPayment builds a payment in the PENDING state against an order.
func NewPayment(id, orderID string, amount float64, method string, now time.Time) Record {
	return Record{
		FieldID:       id,
		"orderId":     orderID,
		"amount":      amount,
		"method":      method,
		"paymentDate": now.UTC().Format(timeFormat),
		FieldStatus:   PaymentPending,
	}
}

// NewDeliveryAppointment builds a delivery-type appointment in SCHEDULED state.
func NewDeliveryAppointment(id, orderID string, appointmentDate time.Time, address string) Record {
	return Record{
		FieldID:           id,
		"orderId":         orderID,
		"type":            AppointmentTypeDelivery,
		"appointmentDate": appointmentDate.UTC().Format(timeFormat),
		"deliveryAddress": address,
		FieldStatus:       AppointmentScheduled,
	}
}

// NewDeliveryDraft builds the delivery record auto-created for an order once
// its payment reaches the policy threshold. Scheduling happens later through
// the delivery's own lifecycle.
func NewDeliveryDraft(id string, order Record, now time.Time) Record {
	d := Record{
		FieldID:     id,
		"orderId":   order.ID(),
		FieldStatus: DeliveryPending,
		"createdAt": now.UTC().Format(timeFormat),
	}
	if inv := order.Str("inventoryId"); inv != "" {
		d["inventoryId"] = inv
	}
	if addr := order.Str("deliveryAddress"); addr != "" {
		d["deliveryAddress"] = addr
	}
	return d
}
