package app

import (
	"context"
	"errors"

	"github.com/openauto/dealerdesk/internal/domain"
)

// errCascadeHalt aborts the remaining cascade steps after one failed; the
// failure itself is already recorded on the Result before this propagates.
var errCascadeHalt = errors.New("cascade halted")

func (w *Workflow) applyPrimary(ctx context.Context, t domain.EntityType, rec domain.Record, transition string) (Result, error) {
	res := &Result{}
	if _, err := w.applyTransition(ctx, t, rec, transition, res); err != nil && !errors.Is(err, errCascadeHalt) {
		// Primary rejection: nothing was persisted.
		return Result{}, err
	}
	if len(res.Touched) > 0 {
		res.Primary = res.Touched[0]
	}
	return *res, nil
}

// applyTransition runs one decide-persist-cascade cycle. Cascades are applied
// depth-first and sequentially; the first failed step is recorded on res and
// halts the rest without rolling back what already landed.
func (w *Workflow) applyTransition(ctx context.Context, t domain.EntityType, rec domain.Record, name string, res *Result) (domain.Record, error) {
	dc, err := w.decisionContext(ctx, t, rec)
	if err != nil {
		return nil, err
	}

	dec, err := w.machine.Decide(ctx, t, rec, name, dc)
	if err != nil {
		return nil, err
	}

	updated := rec.Clone()
	updated[dec.Field] = dec.To
	if t == domain.EntityOrder && dec.Field == domain.FieldPaymentStatus {
		settleOrderBalance(updated, dec.To, dc.CompletedPaymentTotal)
	}
	if dec.From == "" {
		// Creation transition: the record does not exist yet.
		err = w.store.Create(ctx, t, updated)
	} else {
		err = w.store.Update(ctx, t, updated)
	}
	if err != nil {
		return nil, domain.AsRejection(t, err)
	}

	w.publish(ctx, t, name, updated)
	res.Touched = append(res.Touched, EntityRef{Entity: t, ID: updated.ID(), Transition: name, State: dec.To})

	for _, eff := range dec.Effects {
		if err := w.applyEffect(ctx, t, updated, eff, res); err != nil {
			if !errors.Is(err, errCascadeHalt) {
				res.Failures = append(res.Failures, CascadeFailure{
					Entity:     eff.Entity,
					Transition: eff.Transition,
					Rejection:  domain.AsRejection(eff.Entity, err),
				})
			}
			return updated, errCascadeHalt
		}
	}
	return updated, nil
}

// applyEffect executes one cascaded transition, creating the target record
// when the effect is a creation.
func (w *Workflow) applyEffect(ctx context.Context, srcType domain.EntityType, src domain.Record, eff domain.Effect, res *Result) error {
	switch eff.Transition {
	case domain.TrCreateFromQuotation:
		order := domain.NewOrderFromQuotation(newID(), src, w.now())
		_, err := w.applyTransition(ctx, domain.EntityOrder, order, eff.Transition, res)
		return err

	case domain.TrAutoCreate:
		order, err := w.linkedOrder(ctx, srcType, src)
		if err != nil {
			return err
		}
		draft := domain.NewDeliveryDraft(newID(), order, w.now())
		if srcType == domain.EntityAppointment && !draft.Has("deliveryAddress") {
			if addr := src.Str("deliveryAddress"); addr != "" {
				draft["deliveryAddress"] = addr
			}
		}
		_, err = w.applyTransition(ctx, domain.EntityDelivery, draft, eff.Transition, res)
		return err
	}

	targetID, err := w.effectTargetID(srcType, src, eff)
	if err != nil {
		return err
	}
	target, err := w.load(ctx, eff.Entity, targetID)
	if err != nil {
		return err
	}
	// A quotation converts because an order now exists for it; record the
	// back-reference so later operations on the quotation can find the order.
	if eff.Entity == domain.EntityQuotation && eff.Transition == domain.TrConvert &&
		srcType == domain.EntityOrder && !target.Has("orderId") {
		target = target.Clone()
		target["orderId"] = src.ID()
	}
	_, err = w.applyTransition(ctx, eff.Entity, target, eff.Transition, res)
	return err
}

// settleOrderBalance keeps balanceAmount in step with the payment axis:
// the order total less the deposit and the cumulative completed payments,
// floored at zero. A refund restores the full outstanding balance.
func settleOrderBalance(order domain.Record, to string, completedTotal float64) {
	if to == domain.PayRefunded {
		completedTotal = 0
	}
	balance := order.Num("totalAmount") - order.Num("depositAmount") - completedTotal
	if balance < 0 {
		balance = 0
	}
	order["balanceAmount"] = balance
}

// effectTargetID locates the entity a cascade applies to, following the
// source record's reference fields.
func (w *Workflow) effectTargetID(srcType domain.EntityType, src domain.Record, eff domain.Effect) (string, error) {
	var id string
	switch {
	case eff.Entity == srcType:
		id = src.ID()
	case eff.Entity == domain.EntityOrder:
		id = src.Str("orderId")
	case eff.Entity == domain.EntityQuotation:
		id = src.Str("quotationId")
	}
	if id == "" {
		return "", &domain.Rejection{
			Reason:     domain.ReasonNotFound,
			Entity:     eff.Entity,
			Transition: eff.Transition,
			Detail:     "cascade target reference missing on " + string(srcType) + " " + src.ID(),
		}
	}
	return id, nil
}

// linkedOrder returns the order a record belongs to: the record itself for
// orders, or the entity behind its orderId reference.
func (w *Workflow) linkedOrder(ctx context.Context, t domain.EntityType, rec domain.Record) (domain.Record, error) {
	if t == domain.EntityOrder {
		return rec, nil
	}
	id := rec.Str("orderId")
	if id == "" {
		return nil, nil
	}
	order, err := w.load(ctx, domain.EntityOrder, id)
	if err != nil {
		if domain.AsRejection(domain.EntityOrder, err).Reason == domain.ReasonNotFound {
			return nil, nil // dangling reference
		}
		return nil, err
	}
	return order, nil
}

// decisionContext assembles the facts the machine needs: the linked order,
// the cumulative completed payments, delivery presence, and policy knobs.
func (w *Workflow) decisionContext(ctx context.Context, t domain.EntityType, rec domain.Record) (domain.DecisionContext, error) {
	dc := domain.DecisionContext{
		Now:              w.now(),
		Record:           rec,
		DepositThreshold: w.policy.DepositThreshold,
	}

	order, err := w.linkedOrder(ctx, t, rec)
	if err != nil {
		return domain.DecisionContext{}, err
	}
	if order == nil {
		return dc, nil
	}
	dc.Order = order

	completed, hasSettled, err := w.paymentFacts(ctx, order.ID())
	if err != nil {
		return domain.DecisionContext{}, err
	}
	// A payment mid-completion counts toward the cumulative total.
	if t == domain.EntityPayment &&
		domain.NormalizeStatus(domain.EntityPayment, domain.FieldStatus, rec.Str(domain.FieldStatus)) != domain.PaymentCompleted {
		completed += rec.Num("amount")
	}
	dc.CompletedPaymentTotal = completed
	dc.HasSettledPayment = hasSettled &&
		domain.NormalizeStatus(domain.EntityOrder, domain.FieldPaymentStatus, order.Str(domain.FieldPaymentStatus)) != domain.PayRefunded

	active, err := w.hasActiveDelivery(ctx, order.ID())
	if err != nil {
		return domain.DecisionContext{}, err
	}
	dc.HasActiveDelivery = active

	return dc, nil
}

// paymentFacts sums completed payments for an order and reports whether any
// completed payment exists at all.
func (w *Workflow) paymentFacts(ctx context.Context, orderID string) (float64, bool, error) {
	payments, err := w.store.List(ctx, domain.EntityPayment)
	if err != nil {
		return 0, false, domain.AsRejection(domain.EntityPayment, err)
	}
	var total float64
	var settled bool
	for _, p := range payments {
		if p.Str("orderId") != orderID {
			continue
		}
		if domain.NormalizeStatus(domain.EntityPayment, domain.FieldStatus, p.Str(domain.FieldStatus)) != domain.PaymentCompleted {
			continue
		}
		total += p.Num("amount")
		settled = true
	}
	return total, settled, nil
}

// hasActiveDelivery reports whether a non-cancelled delivery exists for the
// order. At most one may exist at any time.
func (w *Workflow) hasActiveDelivery(ctx context.Context, orderID string) (bool, error) {
	deliveries, err := w.store.List(ctx, domain.EntityDelivery)
	if err != nil {
		return false, domain.AsRejection(domain.EntityDelivery, err)
	}
	for _, d := range deliveries {
		if d.Str("orderId") != orderID {
			continue
		}
		if domain.NormalizeStatus(domain.EntityDelivery, domain.FieldStatus, d.Str(domain.FieldStatus)) != domain.DeliveryCancelled {
			return true, nil
		}
	}
	return false, nil
}
