package domain

// State fields tracked by the lifecycle. Orders carry three independent axes:
// the order status proper, the payment axis, and the delivery axis.
const (
	FieldStatus         = "status"
	FieldPaymentStatus  = "paymentStatus"
	FieldDeliveryStatus = "deliveryStatus"
)

// Quotation statuses.
const (
	QuotationPending   = "PENDING"
	QuotationSent      = "SENT"
	QuotationAccepted  = "ACCEPTED"
	QuotationRejected  = "REJECTED"
	QuotationExpired   = "EXPIRED"
	QuotationConverted = "CONVERTED"
)

// Order statuses. Lowercase on the wire, matching the backend.
const (
	OrderPending   = "pending"
	OrderQuoted    = "quoted"
	OrderConfirmed = "confirmed"
	OrderPaid      = "paid"
	OrderDelivered = "delivered"
	OrderCompleted = "completed"
	OrderRejected  = "rejected"
	OrderCancelled = "cancelled"
)

// Order payment axis.
const (
	PayPending  = "PENDING"
	PayPartial  = "PARTIAL"
	PayPaid     = "PAID"
	PayOverdue  = "OVERDUE"
	PayRefunded = "REFUNDED"
)

// Delivery statuses, shared with the order delivery axis.
const (
	DeliveryPending   = "PENDING"
	DeliveryScheduled = "SCHEDULED"
	DeliveryInTransit = "IN_TRANSIT"
	DeliveryDelivered = "DELIVERED"
	DeliveryCancelled = "CANCELLED"
)

// Payment entity statuses.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentCancelled = "CANCELLED"
)

// Appointment statuses and types.
const (
	AppointmentScheduled = "SCHEDULED"
	AppointmentConfirmed = "CONFIRMED"
	AppointmentCompleted = "COMPLETED"
	AppointmentCancelled = "CANCELLED"

	AppointmentTypeTestDrive = "test_drive"
	AppointmentTypeDelivery  = "delivery"
)

// Inventory statuses. Inventory is owned by the warehouse subsystem; the core
// only reads it, so no transitions are declared for it here.
const (
	InventoryAvailable = "AVAILABLE"
	InventoryReserved  = "RESERVED"
	InventorySold      = "SOLD"
	InventoryRemoved   = "REMOVED"
)

// Transition names. Names are scoped per entity type; CANCEL on an order and
// CANCEL on a delivery are distinct table entries.
const (
	TrSend                 = "SEND"
	TrAccept               = "ACCEPT"
	TrReject               = "REJECT"
	TrExpire               = "EXPIRE"
	TrConvert              = "CONVERT"
	TrConfirm              = "CONFIRM"
	TrComplete             = "COMPLETE"
	TrCancel               = "CANCEL"
	TrFail                 = "FAIL"
	TrSchedule             = "SCHEDULE"
	TrDispatch             = "DISPATCH"
	TrCreateFromQuotation  = "CREATE_FROM_QUOTATION"
	TrAutoCreate           = "AUTO_CREATE"
	TrMarkPaid             = "MARK_PAID"
	TrMarkDelivered        = "MARK_DELIVERED"
	TrSetPaymentPartial    = "SET_PAYMENT_PARTIAL"
	TrSetPaymentPaid       = "SET_PAYMENT_PAID"
	TrMarkOverdue          = "MARK_OVERDUE"
	TrRefund               = "REFUND"
	TrSetDeliveryScheduled = "SET_DELIVERY_SCHEDULED"
	TrSetDeliveryInTransit = "SET_DELIVERY_IN_TRANSIT"
	TrSetDeliveryDelivered = "SET_DELIVERY_DELIVERED"
	TrSetDeliveryCancelled = "SET_DELIVERY_CANCELLED"

	// TrDelete is not a state transition; it names the destruction command
	// for event publishing.
	TrDelete = "DELETE"
)

// RefField declares a foreign-key field on an entity type: the field holding
// the bare id, the field the resolver embeds the referenced record under, and
// the referenced entity type. Multi marks an id-list reference.
type RefField struct {
	IDField string
	Embed   string
	Target  EntityType
	Multi   bool
}

var refFields = map[EntityType][]RefField{
	EntityModel: {
		{IDField: "brandId", Embed: "brand", Target: EntityBrand},
	},
	EntityVariant: {
		{IDField: "modelId", Embed: "model", Target: EntityModel},
		{IDField: "colorIds", Embed: "colors", Target: EntityColor, Multi: true},
	},
	EntityInventory: {
		{IDField: "variantId", Embed: "variant", Target: EntityVariant},
		{IDField: "colorId", Embed: "color", Target: EntityColor},
	},
	EntityQuotation: {
		{IDField: "customerId", Embed: "customer", Target: EntityCustomer},
		{IDField: "variantId", Embed: "variant", Target: EntityVariant},
		{IDField: "colorId", Embed: "color", Target: EntityColor},
		{IDField: "orderId", Embed: "order", Target: EntityOrder},
	},
	EntityOrder: {
		{IDField: "customerId", Embed: "customer", Target: EntityCustomer},
		{IDField: "quotationId", Embed: "quotation", Target: EntityQuotation},
		{IDField: "inventoryId", Embed: "inventory", Target: EntityInventory},
	},
	EntityPayment: {
		{IDField: "orderId", Embed: "order", Target: EntityOrder},
	},
	EntityAppointment: {
		{IDField: "orderId", Embed: "order", Target: EntityOrder},
	},
	EntityDelivery: {
		{IDField: "orderId", Embed: "order", Target: EntityOrder},
		{IDField: "inventoryId", Embed: "inventory", Target: EntityInventory},
	},
}

// RefFields returns the declared foreign keys of an entity type. Leaf types
// return nil.
func RefFields(t EntityType) []RefField { return refFields[t] }

// stateSets declares the finite state set per (entity type, state field).
var stateSets = map[EntityType]map[string][]string{
	EntityQuotation: {
		FieldStatus: {QuotationPending, QuotationSent, QuotationAccepted, QuotationRejected, QuotationExpired, QuotationConverted},
	},
	EntityOrder: {
		FieldStatus:         {OrderPending, OrderQuoted, OrderConfirmed, OrderPaid, OrderDelivered, OrderCompleted, OrderRejected, OrderCancelled},
		FieldPaymentStatus:  {PayPending, PayPartial, PayPaid, PayOverdue, PayRefunded},
		FieldDeliveryStatus: {DeliveryPending, DeliveryScheduled, DeliveryInTransit, DeliveryDelivered, DeliveryCancelled},
	},
	EntityPayment: {
		FieldStatus: {PaymentPending, PaymentCompleted, PaymentFailed, PaymentCancelled},
	},
	EntityAppointment: {
		FieldStatus: {AppointmentScheduled, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled},
	},
	EntityDelivery: {
		FieldStatus: {DeliveryPending, DeliveryScheduled, DeliveryInTransit, DeliveryDelivered, DeliveryCancelled},
	},
	EntityInventory: {
		FieldStatus: {InventoryAvailable, InventoryReserved, InventorySold, InventoryRemoved},
	},
}

// States returns the finite state set for a (type, field) pair.
func States(t EntityType, field string) []string {
	fields, ok := stateSets[t]
	if !ok {
		return nil
	}
	return fields[field]
}

// Guard checks a precondition against the decision context. A nil result
// means the precondition holds.
type Guard func(dc DecisionContext) *Rejection

// CascadeRule declares a secondary transition triggered by a primary one.
// If is evaluated against the primary transition's context; a nil If always
// fires.
type CascadeRule struct {
	Entity     EntityType
	Transition string
	If         func(dc DecisionContext) bool
}

// TransitionDef is one edge in an entity's lifecycle. An empty Src marks a
// creation transition: the entity does not exist yet, so there is no current
// state to check. Src and Dst values are canonical states of Field.
type TransitionDef struct {
	Name     string
	Field    string
	Src      []string
	Dst      string
	Guard    Guard
	Cascades []CascadeRule
}

var transitions = map[EntityType][]TransitionDef{
	EntityQuotation: {
		{Name: TrSend, Field: FieldStatus, Src: []string{QuotationPending}, Dst: QuotationSent},
		{Name: TrAccept, Field: FieldStatus, Src: []string{QuotationPending, QuotationSent}, Dst: QuotationAccepted,
			Cascades: []CascadeRule{
				{Entity: EntityOrder, Transition: TrConfirm, If: hasLinkedOrder},
				{Entity: EntityOrder, Transition: TrCreateFromQuotation, If: noLinkedOrder},
			}},
		{Name: TrReject, Field: FieldStatus, Src: []string{QuotationPending, QuotationSent}, Dst: QuotationRejected},
		{Name: TrExpire, Field: FieldStatus, Src: []string{QuotationPending, QuotationSent}, Dst: QuotationExpired},
		{Name: TrConvert, Field: FieldStatus, Src: []string{QuotationAccepted}, Dst: QuotationConverted},
	},
	EntityOrder: {
		{Name: TrCreateFromQuotation, Field: FieldStatus, Dst: OrderConfirmed,
			Cascades: []CascadeRule{
				{Entity: EntityQuotation, Transition: TrConvert, If: hasLinkedQuotation},
			}},
		{Name: TrConfirm, Field: FieldStatus, Src: []string{OrderPending, OrderQuoted}, Dst: OrderConfirmed,
			Cascades: []CascadeRule{
				{Entity: EntityQuotation, Transition: TrConvert, If: hasLinkedQuotation},
			}},
		{Name: TrMarkPaid, Field: FieldStatus, Src: []string{OrderConfirmed}, Dst: OrderPaid},
		{Name: TrMarkDelivered, Field: FieldStatus, Src: []string{OrderPaid}, Dst: OrderDelivered},
		{Name: TrComplete, Field: FieldStatus, Src: []string{OrderDelivered}, Dst: OrderCompleted},
		{Name: TrReject, Field: FieldStatus, Src: []string{OrderPending, OrderQuoted}, Dst: OrderRejected},
		{Name: TrCancel, Field: FieldStatus, Src: []string{OrderPending, OrderQuoted, OrderConfirmed, OrderPaid, OrderDelivered}, Dst: OrderCancelled,
			Guard: guardOrderCancel},

		// Payment axis. PAID is re-assertable so a surplus payment does not
		// turn into an illegal transition; its cascades still run and the
		// delivery duplication guard reports the duplicate.
		{Name: TrSetPaymentPartial, Field: FieldPaymentStatus, Src: []string{PayPending, PayPartial, PayOverdue}, Dst: PayPartial,
			Cascades: []CascadeRule{
				{Entity: EntityDelivery, Transition: TrAutoCreate, If: depositThresholdMet},
			}},
		{Name: TrSetPaymentPaid, Field: FieldPaymentStatus, Src: []string{PayPending, PayPartial, PayOverdue, PayPaid}, Dst: PayPaid,
			Cascades: []CascadeRule{
				{Entity: EntityOrder, Transition: TrMarkPaid, If: orderIsConfirmed},
				{Entity: EntityDelivery, Transition: TrAutoCreate},
			}},
		{Name: TrMarkOverdue, Field: FieldPaymentStatus, Src: []string{PayPending, PayPartial}, Dst: PayOverdue},
		{Name: TrRefund, Field: FieldPaymentStatus, Src: []string{PayPartial, PayPaid, PayOverdue}, Dst: PayRefunded},

		// Delivery axis, driven by the delivery entity's lifecycle.
		{Name: TrSetDeliveryScheduled, Field: FieldDeliveryStatus, Src: []string{DeliveryPending, DeliveryCancelled}, Dst: DeliveryScheduled},
		{Name: TrSetDeliveryInTransit, Field: FieldDeliveryStatus, Src: []string{DeliveryScheduled}, Dst: DeliveryInTransit},
		{Name: TrSetDeliveryDelivered, Field: FieldDeliveryStatus, Src: []string{DeliveryScheduled, DeliveryInTransit}, Dst: DeliveryDelivered},
		{Name: TrSetDeliveryCancelled, Field: FieldDeliveryStatus, Src: []string{DeliveryPending, DeliveryScheduled, DeliveryInTransit}, Dst: DeliveryCancelled},
	},
	EntityPayment: {
		{Name: TrComplete, Field: FieldStatus, Src: []string{PaymentPending}, Dst: PaymentCompleted,
			Cascades: []CascadeRule{
				{Entity: EntityOrder, Transition: TrSetPaymentPaid, If: paymentsCoverTotal},
				{Entity: EntityOrder, Transition: TrSetPaymentPartial, If: paymentsCoverPart},
			}},
		{Name: TrFail, Field: FieldStatus, Src: []string{PaymentPending}, Dst: PaymentFailed},
		{Name: TrCancel, Field: FieldStatus, Src: []string{PaymentPending}, Dst: PaymentCancelled},
	},
	EntityAppointment: {
		{Name: TrSchedule, Field: FieldStatus, Dst: AppointmentScheduled},
		{Name: TrConfirm, Field: FieldStatus, Src: []string{AppointmentScheduled}, Dst: AppointmentConfirmed,
			Cascades: []CascadeRule{
				{Entity: EntityDelivery, Transition: TrAutoCreate, If: isDeliveryAppointment},
			}},
		{Name: TrComplete, Field: FieldStatus, Src: []string{AppointmentConfirmed}, Dst: AppointmentCompleted},
		{Name: TrCancel, Field: FieldStatus, Src: []string{AppointmentScheduled, AppointmentConfirmed}, Dst: AppointmentCancelled},
	},
	EntityDelivery: {
		{Name: TrAutoCreate, Field: FieldStatus, Dst: DeliveryPending, Guard: guardDeliveryCreate},
		{Name: TrSchedule, Field: FieldStatus, Src: []string{DeliveryPending}, Dst: DeliveryScheduled,
			Cascades: []CascadeRule{
				{Entity: EntityOrder, Transition: TrSetDeliveryScheduled, If: hasLinkedOrder},
			}},
		{Name: TrDispatch, Field: FieldStatus, Src: []string{DeliveryScheduled}, Dst: DeliveryInTransit,
			Cascades: []CascadeRule{
				{Entity: EntityOrder, Transition: TrSetDeliveryInTransit, If: hasLinkedOrder},
			}},
		{Name: TrComplete, Field: FieldStatus, Src: []string{DeliveryScheduled, DeliveryInTransit}, Dst: DeliveryDelivered,
			Cascades: []CascadeRule{
				{Entity: EntityOrder, Transition: TrSetDeliveryDelivered, If: hasLinkedOrder},
				{Entity: EntityOrder, Transition: TrMarkDelivered, If: orderIsPaid},
			}},
		{Name: TrCancel, Field: FieldStatus, Src: []string{DeliveryPending, DeliveryScheduled, DeliveryInTransit}, Dst: DeliveryCancelled,
			Cascades: []CascadeRule{
				{Entity: EntityOrder, Transition: TrSetDeliveryCancelled, If: hasLinkedOrder},
			}},
	},
}

// Transitions returns the declared lifecycle edges of an entity type.
func Transitions(t EntityType) []TransitionDef { return transitions[t] }

// LifecycleEntities returns the entity types that declare transitions, in
// schema order.
func LifecycleEntities() []EntityType {
	return []EntityType{EntityQuotation, EntityOrder, EntityPayment, EntityAppointment, EntityDelivery}
}

// FindTransition looks up a transition by name on an entity type.
func FindTransition(t EntityType, name string) (TransitionDef, bool) {
	for _, def := range transitions[t] {
		if def.Name == name {
			return def, true
		}
	}
	return TransitionDef{}, false
}

// --- cascade conditions and guards ---

func hasLinkedOrder(dc DecisionContext) bool { return dc.Order != nil }
func noLinkedOrder(dc DecisionContext) bool  { return dc.Order == nil }

func hasLinkedQuotation(dc DecisionContext) bool {
	return dc.Record.Str("quotationId") != ""
}

func orderIsConfirmed(dc DecisionContext) bool {
	return dc.Order != nil && NormalizeStatus(EntityOrder, FieldStatus, dc.Order.Str(FieldStatus)) == OrderConfirmed
}

func orderIsPaid(dc DecisionContext) bool {
	return dc.Order != nil && NormalizeStatus(EntityOrder, FieldStatus, dc.Order.Str(FieldStatus)) == OrderPaid
}

func isDeliveryAppointment(dc DecisionContext) bool {
	return dc.Record.Str("type") == AppointmentTypeDelivery && dc.Order != nil
}

func paymentsCoverTotal(dc DecisionContext) bool {
	return dc.Order != nil && dc.Order.Num("totalAmount") > 0 &&
		dc.CompletedPaymentTotal >= dc.Order.Num("totalAmount")
}

func paymentsCoverPart(dc DecisionContext) bool {
	return dc.Order != nil && dc.CompletedPaymentTotal > 0 &&
		dc.CompletedPaymentTotal < dc.Order.Num("totalAmount")
}

func depositThresholdMet(dc DecisionContext) bool {
	if dc.Order == nil {
		return false
	}
	total := dc.Order.Num("totalAmount")
	return total > 0 && dc.CompletedPaymentTotal >= dc.DepositThreshold*total
}

// guardOrderCancel blocks cancellation while a completed payment has not been
// refunded. The caller must run the refund flow first.
func guardOrderCancel(dc DecisionContext) *Rejection {
	if !dc.HasSettledPayment {
		return nil
	}
	return &Rejection{
		Reason:     ReasonUnsatisfiedPrecondition,
		Entity:     EntityOrder,
		ID:         dc.Record.ID(),
		Transition: TrCancel,
		State:      NormalizeStatus(EntityOrder, FieldStatus, dc.Record.Str(FieldStatus)),
		Detail:     "order has a completed, non-refunded payment",
	}
}

// guardDeliveryCreate enforces the single-active-delivery rule and the
// payment threshold a delivery requires.
func guardDeliveryCreate(dc DecisionContext) *Rejection {
	if dc.Order == nil {
		return &Rejection{
			Reason:     ReasonUnsatisfiedPrecondition,
			Entity:     EntityDelivery,
			Transition: TrAutoCreate,
			Detail:     "delivery requires a linked order",
		}
	}
	if dc.HasActiveDelivery {
		return &Rejection{
			Reason:     ReasonDuplicateSideEffect,
			Entity:     EntityDelivery,
			Transition: TrAutoCreate,
			Detail:     "order " + dc.Order.ID() + " already has a non-cancelled delivery",
		}
	}
	ps := NormalizeStatus(EntityOrder, FieldPaymentStatus, dc.Order.Str(FieldPaymentStatus))
	if ps == PayPaid || (ps == PayPartial && depositThresholdMet(dc)) {
		return nil
	}
	return &Rejection{
		Reason:     ReasonUnsatisfiedPrecondition,
		Entity:     EntityOrder,
		ID:         dc.Order.ID(),
		Transition: TrAutoCreate,
		State:      ps,
		Detail:     "order payment below the delivery threshold",
	}
}
