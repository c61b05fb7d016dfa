package domain

import (
	"context"
	"time"
)

// DecisionContext carries the facts a transition decision may need. The
// orchestrator assembles it; the machine itself never fetches anything.
type DecisionContext struct {
	Now    time.Time
	Record Record // the entity the transition applies to
	Order  Record // the linked order, when one exists

	// CompletedPaymentTotal is the cumulative completed payment amount for
	// the linked order, including a payment currently being completed.
	CompletedPaymentTotal float64

	// HasActiveDelivery reports whether the linked order already has a
	// non-cancelled delivery.
	HasActiveDelivery bool

	// HasSettledPayment reports whether the linked order has a completed
	// payment that was not refunded.
	HasSettledPayment bool

	// DepositThreshold is the fraction of the order total that a PARTIAL
	// payment must cover before delivery creation is allowed.
	DepositThreshold float64
}

// Effect is a cascaded transition the decision requires on another entity.
// Cascade ordering is significant and preserved from the schema.
type Effect struct {
	Entity     EntityType
	Transition string
}

// Decision is an approved transition: which state field moves, from where to
// where, and the cascades it triggers.
type Decision struct {
	Field   string
	From    string
	To      string
	Effects []Effect
}

// Machine decides transition legality and cascade effects from the schema
// tables. It is pure: no fetches, no writes, no clocks beyond the context.
type Machine struct {
	validator TransitionValidator
}

// NewMachine creates a machine backed by the given transition validator.
func NewMachine(validator TransitionValidator) *Machine {
	return &Machine{validator: validator}
}

// QuotationEffectiveStatus returns the status a quotation is treated as
// having for legality decisions: a stored PENDING/SENT quotation whose expiry
// date has passed is already EXPIRED, whatever the record says.
func QuotationEffectiveStatus(rec Record, now time.Time) string {
	s := NormalizeStatus(EntityQuotation, FieldStatus, rec.Str(FieldStatus))
	if s != QuotationPending && s != QuotationSent {
		return s
	}
	if expiry, ok := rec.Time(FieldExpiry); ok && expiry.Before(now) {
		return QuotationExpired
	}
	return s
}

// Decide checks whether the named transition is legal for rec's current state
// and, if so, which cascades it triggers. The returned error is always a
// *Rejection.
func (m *Machine) Decide(ctx context.Context, t EntityType, rec Record, name string, dc DecisionContext) (Decision, error) {
	def, ok := FindTransition(t, name)
	if !ok {
		return Decision{}, &Rejection{
			Reason:     ReasonIllegalTransition,
			Entity:     t,
			ID:         rec.ID(),
			Transition: name,
			Detail:     "no such transition",
		}
	}

	var current string
	if len(def.Src) > 0 {
		stored := NormalizeStatus(t, def.Field, rec.Str(def.Field))
		current = stored
		if t == EntityQuotation && def.Field == FieldStatus {
			current = QuotationEffectiveStatus(rec, dc.Now)
		}

		if _, err := m.validator.Apply(ctx, t, def.Field, current, name); err != nil {
			rej := AsRejection(t, err)
			if current == QuotationExpired && stored != QuotationExpired {
				rej = &Rejection{
					Reason:     ReasonExpired,
					Entity:     t,
					Transition: name,
					State:      stored,
					Detail:     "quotation expired on " + rec.Str(FieldExpiry),
				}
			}
			if rej.ID == "" {
				rej.ID = rec.ID()
			}
			return Decision{}, rej
		}
	}

	if def.Guard != nil {
		if rej := def.Guard(dc); rej != nil {
			return Decision{}, rej
		}
	}

	var effects []Effect
	for _, c := range def.Cascades {
		if c.If == nil || c.If(dc) {
			effects = append(effects, Effect{Entity: c.Entity, Transition: c.Transition})
		}
	}

	return Decision{Field: def.Field, From: current, To: def.Dst, Effects: effects}, nil
}
