package domain

import "strings"

// The backend's status strings arrive inconsistently cased ("PAID", "paid")
// and sometimes as the display label itself ("Đã thanh toán"). All lifecycle
// decisions run on the canonical states declared in schema.go; this file owns
// the boundary normalization and the presentation side table.

// statusAliases maps known non-canonical spellings (lowercased) to canonical
// states, per entity type and state field.
var statusAliases = map[EntityType]map[string]map[string]string{
	EntityOrder: {
		FieldPaymentStatus: {
			"đã thanh toán":           PayPaid,
			"chưa thanh toán":         PayPending,
			"thanh toán một phần":     PayPartial,
			"quá hạn":                 PayOverdue,
			"đã hoàn tiền":            PayRefunded,
		},
		FieldDeliveryStatus: {
			"đã giao":     DeliveryDelivered,
			"đang giao":   DeliveryInTransit,
			"chờ giao":    DeliveryPending,
		},
	},
	EntityQuotation: {
		FieldStatus: {
			"đã gửi":       QuotationSent,
			"đã chấp nhận": QuotationAccepted,
			"hết hạn":      QuotationExpired,
		},
	},
}

// NormalizeStatus maps a raw status string onto the canonical state set of
// (t, field). Unknown values are returned trimmed but otherwise unchanged so
// callers can still surface them.
func NormalizeStatus(t EntityType, field, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, s := range States(t, field) {
		if strings.EqualFold(raw, s) {
			return s
		}
	}
	if byField, ok := statusAliases[t]; ok {
		if canonical, ok := byField[field][strings.ToLower(raw)]; ok {
			return canonical
		}
	}
	return raw
}

// statusLabels holds the display labels the original console showed; the
// lifecycle never branches on these.
var statusLabels = map[EntityType]map[string]string{
	EntityQuotation: {
		QuotationPending:   "Chờ xử lý",
		QuotationSent:      "Đã gửi",
		QuotationAccepted:  "Đã chấp nhận",
		QuotationRejected:  "Đã từ chối",
		QuotationExpired:   "Hết hạn",
		QuotationConverted: "Đã chuyển thành đơn hàng",
	},
	EntityOrder: {
		OrderPending:   "Chờ xử lý",
		OrderQuoted:    "Đã báo giá",
		OrderConfirmed: "Đã xác nhận",
		OrderPaid:      "Đã thanh toán",
		OrderDelivered: "Đã giao xe",
		OrderCompleted: "Hoàn tất",
		OrderRejected:  "Đã từ chối",
		OrderCancelled: "Đã hủy",
	},
	EntityPayment: {
		PaymentPending:   "Chờ thanh toán",
		PaymentCompleted: "Đã thanh toán",
		PaymentFailed:    "Thất bại",
		PaymentCancelled: "Đã hủy",
	},
	EntityAppointment: {
		AppointmentScheduled: "Đã đặt lịch",
		AppointmentConfirmed: "Đã xác nhận",
		AppointmentCompleted: "Hoàn tất",
		AppointmentCancelled: "Đã hủy",
	},
	EntityDelivery: {
		DeliveryPending:   "Chờ giao",
		DeliveryScheduled: "Đã lên lịch",
		DeliveryInTransit: "Đang giao",
		DeliveryDelivered: "Đã giao",
		DeliveryCancelled: "Đã hủy",
	},
}

// StatusLabel returns the display label for a canonical state, falling back
// to the state itself when no label is declared.
func StatusLabel(t EntityType, state string) string {
	if label, ok := statusLabels[t][state]; ok {
		return label
	}
	return state
}
