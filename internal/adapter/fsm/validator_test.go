package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/openauto/dealerdesk/internal/adapter/fsm"
	"github.com/openauto/dealerdesk/internal/domain"
)

func TestValidator_AllDeclaredTransitions(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, et := range domain.LifecycleEntities() {
		for _, def := range domain.Transitions(et) {
			for _, src := range def.Src {
				dst, err := v.Apply(ctx, et, def.Field, src, def.Name)
				if err != nil {
					t.Errorf("%s: Apply(%q, %q, %q) unexpected error: %v", et, def.Field, src, def.Name, err)
					continue
				}
				if dst != def.Dst {
					t.Errorf("%s: Apply(%q, %q, %q) = %q, want %q", et, def.Field, src, def.Name, dst, def.Dst)
				}
			}
		}
	}
}

func TestValidator_IllegalTransition(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	// A converted quotation cannot be accepted again.
	_, err := v.Apply(ctx, domain.EntityQuotation, domain.FieldStatus, domain.QuotationConverted, domain.TrAccept)
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
	if rej.Reason != domain.ReasonIllegalTransition {
		t.Errorf("reason = %q, want %q", rej.Reason, domain.ReasonIllegalTransition)
	}
	if rej.State != domain.QuotationConverted {
		t.Errorf("state = %q, want %q", rej.State, domain.QuotationConverted)
	}
}

func TestValidator_QuotationLifecycle(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	steps := []struct {
		from       string
		transition string
		want       string
	}{
		{domain.QuotationPending, domain.TrSend, domain.QuotationSent},
		{domain.QuotationSent, domain.TrAccept, domain.QuotationAccepted},
		{domain.QuotationAccepted, domain.TrConvert, domain.QuotationConverted},
	}

	for _, step := range steps {
		got, err := v.Apply(ctx, domain.EntityQuotation, domain.FieldStatus, step.from, step.transition)
		if err != nil {
			t.Fatalf("Apply(%q, %q) error: %v", step.from, step.transition, err)
		}
		if got != step.want {
			t.Errorf("Apply(%q, %q) = %q, want %q", step.from, step.transition, got, step.want)
		}
	}
}

func TestValidator_PaymentPaidReassert(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	// Setting a paid order to paid again is declared and must succeed, so a
	// surplus payment still runs its cascades.
	got, err := v.Apply(ctx, domain.EntityOrder, domain.FieldPaymentStatus, domain.PayPaid, domain.TrSetPaymentPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.PayPaid {
		t.Errorf("got %q, want %q", got, domain.PayPaid)
	}
}

func TestValidator_IndependentOrderAxes(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	// A delivery-axis transition is unknown to the payment-axis machine.
	_, err := v.Apply(ctx, domain.EntityOrder, domain.FieldPaymentStatus, domain.PayPending, domain.TrSetDeliveryScheduled)
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
	if rej.Reason != domain.ReasonIllegalTransition {
		t.Errorf("reason = %q, want %q", rej.Reason, domain.ReasonIllegalTransition)
	}
}

func TestValidator_UnknownField(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	_, err := v.Apply(ctx, domain.EntityCustomer, domain.FieldStatus, "active", domain.TrCancel)
	var rej *domain.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *domain.Rejection, got %v", err)
	}
}
