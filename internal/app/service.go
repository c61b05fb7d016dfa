package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openauto/dealerdesk/internal/domain"
	"github.com/openauto/dealerdesk/internal/resolve"
)

// Role is the caller's claim, handed to the core by the external identity
// boundary. The orchestrator enforces the public allow-list itself; policy
// between authenticated roles is out of scope.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleDealerStaff   Role = "dealer_staff"
	RoleDealerManager Role = "dealer_manager"
	RoleFactoryStaff  Role = "factory_staff"
	RolePublic        Role = "public"
)

// Command names, used for the public allow-list and error context.
const (
	opSendQuotation             = "sendQuotation"
	opAcceptQuotation           = "acceptQuotation"
	opRejectQuotation           = "rejectQuotation"
	opDeleteQuotation           = "deleteQuotation"
	opRecordPayment             = "recordPayment"
	opRecordPublicPayment       = "recordPublicPayment"
	opCreateDeliveryAppointment = "createDeliveryAppointment"
	opConfirmAppointment        = "confirmAppointment"
	opCancelAppointment         = "cancelAppointment"
	opScheduleDelivery          = "scheduleDelivery"
	opDispatchDelivery          = "dispatchDelivery"
	opConfirmDelivery           = "confirmDelivery"
	opCancelDelivery            = "cancelDelivery"
	opCancelOrder               = "cancelOrder"
	opCompleteOrder             = "completeOrder"
	opRefundOrder               = "refundOrder"
)

// publicCommands is the only surface anonymous callers may reach. The UI
// boundary is not a trusted gate, so this lives here.
var publicCommands = map[string]bool{
	opAcceptQuotation:           true,
	opCreateDeliveryAppointment: true,
	opRecordPublicPayment:       true,
}

// DefaultDepositThreshold is the fraction of the order total a PARTIAL
// payment must cover before a delivery is auto-created.
const DefaultDepositThreshold = 0.20

// Policy holds the configurable lifecycle knobs.
type Policy struct {
	DepositThreshold float64
}

// EntityRef identifies one applied transition in a workflow result.
type EntityRef struct {
	Entity     domain.EntityType
	ID         string
	Transition string
	State      string
}

// CascadeFailure is one cascade step that was rejected after the primary
// transition had already been persisted.
type CascadeFailure struct {
	Entity     domain.EntityType
	Transition string
	Rejection  *domain.Rejection
}

// Result reports a workflow operation honestly: the primary transition, every
// entity touched, and any cascade steps that failed. Already-persisted steps
// are never rolled back; callers must surface partial application instead of
// treating it as total failure.
type Result struct {
	Primary  EntityRef
	Touched  []EntityRef
	Failures []CascadeFailure
}

// Workflow sequences multi-entity lifecycle operations. It is the only
// component permitted to write status fields: every mutation funnels through
// the machine's decision and this orchestrator's persistence.
type Workflow struct {
	store     domain.EntityStore
	machine   *domain.Machine
	publisher domain.EventPublisher
	resolver  *resolve.Resolver
	locks     *entityLocks
	policy    Policy
	now       func() time.Time
}

// NewWorkflow creates the orchestrator with the given adapters.
func NewWorkflow(store domain.EntityStore, validator domain.TransitionValidator, publisher domain.EventPublisher, policy Policy) *Workflow {
	if policy.DepositThreshold <= 0 {
		policy.DepositThreshold = DefaultDepositThreshold
	}
	return &Workflow{
		store:     store,
		machine:   domain.NewMachine(validator),
		publisher: publisher,
		resolver:  resolve.New(store),
		locks:     newEntityLocks(),
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// --- quotation commands ---

// SendQuotation marks a pending quotation as sent to the customer.
func (w *Workflow) SendQuotation(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opSendQuotation, domain.EntityQuotation, id, domain.TrSend)
}

// AcceptQuotation accepts a quotation on the customer's behalf, confirming
// the linked order or materializing a new one from the quoted price.
func (w *Workflow) AcceptQuotation(ctx context.Context, role Role, id, conditions string) (Result, error) {
	if err := w.authorize(role, opAcceptQuotation); err != nil {
		return Result{}, err
	}
	unlock := w.locks.lock(domain.EntityQuotation, id)
	defer unlock()

	rec, err := w.load(ctx, domain.EntityQuotation, id)
	if err != nil {
		return Result{}, err
	}
	rec = rec.Clone()
	if conditions != "" {
		appendNote(rec, conditions)
	}
	return w.applyPrimary(ctx, domain.EntityQuotation, rec, domain.TrAccept)
}

// RejectQuotation records the customer's refusal.
func (w *Workflow) RejectQuotation(ctx context.Context, role Role, id, reason string) (Result, error) {
	if err := w.authorize(role, opRejectQuotation); err != nil {
		return Result{}, err
	}
	unlock := w.locks.lock(domain.EntityQuotation, id)
	defer unlock()

	rec, err := w.load(ctx, domain.EntityQuotation, id)
	if err != nil {
		return Result{}, err
	}
	rec = rec.Clone()
	if reason != "" {
		appendNote(rec, reason)
	}
	return w.applyPrimary(ctx, domain.EntityQuotation, rec, domain.TrReject)
}

// DeleteQuotation destroys a quotation. When its linked order is in a
// critical state (paid, delivered, completed), the order must be cancellable
// first: the cancel is applied, then the quotation is deleted. A rejected
// cancel blocks the deletion entirely.
func (w *Workflow) DeleteQuotation(ctx context.Context, role Role, id string) (Result, error) {
	if err := w.authorize(role, opDeleteQuotation); err != nil {
		return Result{}, err
	}
	unlock := w.locks.lock(domain.EntityQuotation, id)
	defer unlock()

	rec, err := w.load(ctx, domain.EntityQuotation, id)
	if err != nil {
		return Result{}, err
	}

	res := &Result{}
	if orderID := rec.Str("orderId"); orderID != "" {
		order, lerr := w.load(ctx, domain.EntityOrder, orderID)
		switch {
		case lerr == nil:
			if orderInCriticalState(order) {
				if _, aerr := w.applyTransition(ctx, domain.EntityOrder, order, domain.TrCancel, res); aerr != nil && !errors.Is(aerr, errCascadeHalt) {
					return Result{}, aerr
				}
			}
		case domain.AsRejection(domain.EntityOrder, lerr).Reason == domain.ReasonNotFound:
			// Dangling reference; nothing to cancel.
		default:
			return Result{}, lerr
		}
	}

	if err := w.store.Delete(ctx, domain.EntityQuotation, id); err != nil {
		return Result{}, domain.AsRejection(domain.EntityQuotation, err)
	}
	w.publish(ctx, domain.EntityQuotation, domain.TrDelete, rec)

	res.Primary = EntityRef{Entity: domain.EntityQuotation, ID: id, Transition: domain.TrDelete}
	res.Touched = append(res.Touched, res.Primary)
	return *res, nil
}

// --- payment commands ---

// RecordPayment registers a payment against an order and completes it,
// cascading the order's payment status and, at the policy threshold, the
// delivery draft.
func (w *Workflow) RecordPayment(ctx context.Context, role Role, orderID string, amount float64, method string) (Result, error) {
	return w.recordPayment(ctx, role, opRecordPayment, orderID, amount, method)
}

// RecordPublicPayment is the allow-listed variant exposed to anonymous
// customers paying online.
func (w *Workflow) RecordPublicPayment(ctx context.Context, role Role, orderID string, amount float64, method string) (Result, error) {
	return w.recordPayment(ctx, role, opRecordPublicPayment, orderID, amount, method)
}

func (w *Workflow) recordPayment(ctx context.Context, role Role, op, orderID string, amount float64, method string) (Result, error) {
	if err := w.authorize(role, op); err != nil {
		return Result{}, err
	}
	if amount <= 0 {
		return Result{}, &domain.Rejection{
			Reason: domain.ReasonUnsatisfiedPrecondition,
			Entity: domain.EntityPayment,
			Detail: "payment amount must be positive",
		}
	}

	unlock := w.locks.lock(domain.EntityOrder, orderID)
	defer unlock()

	if _, err := w.load(ctx, domain.EntityOrder, orderID); err != nil {
		return Result{}, err
	}

	payment := domain.NewPayment(newID(), orderID, amount, method, w.now())
	if err := w.store.Create(ctx, domain.EntityPayment, payment); err != nil {
		return Result{}, domain.AsRejection(domain.EntityPayment, err)
	}

	return w.applyPrimary(ctx, domain.EntityPayment, payment, domain.TrComplete)
}

// --- appointment commands ---

// CreateDeliveryAppointment schedules a delivery appointment for an order.
func (w *Workflow) CreateDeliveryAppointment(ctx context.Context, role Role, orderID string, date time.Time, address string) (Result, error) {
	if err := w.authorize(role, opCreateDeliveryAppointment); err != nil {
		return Result{}, err
	}
	if _, err := w.load(ctx, domain.EntityOrder, orderID); err != nil {
		return Result{}, err
	}

	appointment := domain.NewDeliveryAppointment(newID(), orderID, date, address)
	return w.applyPrimary(ctx, domain.EntityAppointment, appointment, domain.TrSchedule)
}

// ConfirmAppointment confirms a scheduled appointment. Delivery-type
// appointments cascade delivery creation under the non-duplication rule.
func (w *Workflow) ConfirmAppointment(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opConfirmAppointment, domain.EntityAppointment, id, domain.TrConfirm)
}

// CancelAppointment cancels a scheduled or confirmed appointment.
func (w *Workflow) CancelAppointment(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opCancelAppointment, domain.EntityAppointment, id, domain.TrCancel)
}

// --- delivery commands ---

// ScheduleDelivery sets the scheduled date on a pending delivery and moves it
// to SCHEDULED, mirroring the state onto the order's delivery axis.
func (w *Workflow) ScheduleDelivery(ctx context.Context, role Role, id string, date time.Time) (Result, error) {
	if err := w.authorize(role, opScheduleDelivery); err != nil {
		return Result{}, err
	}
	unlock := w.locks.lock(domain.EntityDelivery, id)
	defer unlock()

	rec, err := w.load(ctx, domain.EntityDelivery, id)
	if err != nil {
		return Result{}, err
	}
	rec = rec.Clone()
	rec["scheduledDate"] = date.UTC().Format(time.RFC3339)
	return w.applyPrimary(ctx, domain.EntityDelivery, rec, domain.TrSchedule)
}

// DispatchDelivery marks a scheduled delivery as on its way.
func (w *Workflow) DispatchDelivery(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opDispatchDelivery, domain.EntityDelivery, id, domain.TrDispatch)
}

// ConfirmDelivery marks the vehicle as handed over, cascading the order's
// delivery axis and, for paid orders, the order status itself.
func (w *Workflow) ConfirmDelivery(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opConfirmDelivery, domain.EntityDelivery, id, domain.TrComplete)
}

// CancelDelivery calls off a delivery that has not been handed over yet,
// mirroring the cancellation onto the order's delivery axis.
func (w *Workflow) CancelDelivery(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opCancelDelivery, domain.EntityDelivery, id, domain.TrCancel)
}

// --- order commands ---

// CancelOrder cancels an order unless a completed, non-refunded payment
// blocks it.
func (w *Workflow) CancelOrder(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opCancelOrder, domain.EntityOrder, id, domain.TrCancel)
}

// CompleteOrder closes out a delivered order.
func (w *Workflow) CompleteOrder(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opCompleteOrder, domain.EntityOrder, id, domain.TrComplete)
}

// RefundOrder marks an order's payments as refunded, unblocking cancellation.
func (w *Workflow) RefundOrder(ctx context.Context, role Role, id string) (Result, error) {
	return w.simpleTransition(ctx, role, opRefundOrder, domain.EntityOrder, id, domain.TrRefund)
}

// --- shared plumbing ---

func (w *Workflow) simpleTransition(ctx context.Context, role Role, op string, t domain.EntityType, id, transition string) (Result, error) {
	if err := w.authorize(role, op); err != nil {
		return Result{}, err
	}
	unlock := w.locks.lock(t, id)
	defer unlock()

	rec, err := w.load(ctx, t, id)
	if err != nil {
		return Result{}, err
	}
	return w.applyPrimary(ctx, t, rec, transition)
}

func (w *Workflow) authorize(role Role, op string) error {
	if role == "" {
		role = RolePublic
	}
	if role == RolePublic && !publicCommands[op] {
		return fmt.Errorf("%s: %w", op, domain.ErrNotPermitted)
	}
	return nil
}

func (w *Workflow) load(ctx context.Context, t domain.EntityType, id string) (domain.Record, error) {
	rec, err := w.store.GetByID(ctx, t, id)
	if err != nil {
		return nil, domain.AsRejection(t, err)
	}
	return rec, nil
}

func (w *Workflow) publish(ctx context.Context, t domain.EntityType, transition string, rec domain.Record) {
	if w.publisher == nil {
		return
	}
	// Event delivery is advisory; a failed enqueue never unwinds a persisted
	// transition.
	_ = w.publisher.Publish(ctx, t, transition, rec)
}

func appendNote(rec domain.Record, note string) {
	if existing := rec.Str("notes"); existing != "" {
		rec["notes"] = existing + "\n" + note
		return
	}
	rec["notes"] = note
}

func orderInCriticalState(order domain.Record) bool {
	switch domain.NormalizeStatus(domain.EntityOrder, domain.FieldStatus, order.Str(domain.FieldStatus)) {
	case domain.OrderPaid, domain.OrderDelivered, domain.OrderCompleted:
		return true
	}
	return domain.NormalizeStatus(domain.EntityOrder, domain.FieldPaymentStatus, order.Str(domain.FieldPaymentStatus)) == domain.PayPaid
}
