package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openauto/dealerdesk/internal/app"
	"github.com/openauto/dealerdesk/internal/domain"
)

// EntityRefResponse identifies one applied transition.
type EntityRefResponse struct {
	Entity     string `json:"entity" doc:"Entity type"`
	ID         string `json:"id" doc:"Entity identifier"`
	Transition string `json:"transition" doc:"Transition applied"`
	State      string `json:"state,omitempty" doc:"Resulting state"`
}

// CascadeFailureResponse is one cascade step that was rejected after the
// primary transition had already been persisted.
type CascadeFailureResponse struct {
	Entity     string `json:"entity" doc:"Entity type"`
	Transition string `json:"transition" doc:"Transition that failed"`
	Reason     string `json:"reason" doc:"Rejection reason code"`
	Detail     string `json:"detail,omitempty" doc:"Human-readable detail"`
}

// ResultResponse is the API representation of a workflow result. A non-empty
// failures list means the operation was applied partially; already-persisted
// steps are not rolled back.
type ResultResponse struct {
	Primary  EntityRefResponse        `json:"primary" doc:"The transition the command asked for"`
	Touched  []EntityRefResponse      `json:"touched" doc:"Every transition applied, in order"`
	Failures []CascadeFailureResponse `json:"failures,omitempty" doc:"Cascade steps that were rejected"`
}

func toResultResponse(res app.Result) ResultResponse {
	out := ResultResponse{
		Primary: toEntityRefResponse(res.Primary),
		Touched: make([]EntityRefResponse, len(res.Touched)),
	}
	for i, ref := range res.Touched {
		out.Touched[i] = toEntityRefResponse(ref)
	}
	for _, f := range res.Failures {
		fr := CascadeFailureResponse{
			Entity:     string(f.Entity),
			Transition: f.Transition,
		}
		if f.Rejection != nil {
			fr.Reason = string(f.Rejection.Reason)
			fr.Detail = f.Rejection.Detail
		}
		out.Failures = append(out.Failures, fr)
	}
	return out
}

func toEntityRefResponse(ref app.EntityRef) EntityRefResponse {
	return EntityRefResponse{
		Entity:     string(ref.Entity),
		ID:         ref.ID,
		Transition: ref.Transition,
		State:      ref.State,
	}
}

// --- inputs ---

// The caller's role arrives from the identity boundary as a header; an absent
// header means an anonymous customer.

type TransitionInput struct {
	Role string `header:"X-Role" required:"false" doc:"Caller role claim"`
	ID   string `path:"id" doc:"Entity ID"`
}

type AcceptQuotationInput struct {
	Role string `header:"X-Role" required:"false" doc:"Caller role claim"`
	ID   string `path:"id" doc:"Quotation ID"`
	Body struct {
		Conditions string `json:"conditions,omitempty" maxLength:"2000" doc:"Negotiated conditions to record on the quotation"`
	}
}

type RejectQuotationInput struct {
	Role string `header:"X-Role" required:"false" doc:"Caller role claim"`
	ID   string `path:"id" doc:"Quotation ID"`
	Body struct {
		Reason string `json:"reason,omitempty" maxLength:"2000" doc:"Customer's reason for refusing"`
	}
}

type RecordPaymentInput struct {
	Role string `header:"X-Role" required:"false" doc:"Caller role claim"`
	ID   string `path:"id" doc:"Order ID"`
	Body struct {
		Amount float64 `json:"amount" exclusiveMinimum:"0" doc:"Payment amount in VND"`
		Method string  `json:"method,omitempty" doc:"Payment method"`
	}
}

type CreateAppointmentInput struct {
	Role string `header:"X-Role" required:"false" doc:"Caller role claim"`
	ID   string `path:"id" doc:"Order ID"`
	Body struct {
		Date    time.Time `json:"date" doc:"Appointment date"`
		Address string    `json:"address,omitempty" doc:"Delivery address"`
	}
}

type ScheduleDeliveryInput struct {
	Role string `header:"X-Role" required:"false" doc:"Caller role claim"`
	ID   string `path:"id" doc:"Delivery ID"`
	Body struct {
		Date time.Time `json:"date" doc:"Scheduled delivery date"`
	}
}

type ResultOutput struct {
	Body ResultResponse
}

type ViewInput struct {
	ID string `path:"id" doc:"Entity ID"`
}

type ViewOutput struct {
	Body map[string]any
}

// Register adds all workflow API routes to the Huma API.
func Register(api huma.API, svc *app.Workflow) {
	// Quotations.
	registerCommand(api, "send-quotation", http.MethodPost, "/api/v1/quotations/{id}/send",
		"Mark a quotation as sent", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.SendQuotation(ctx, app.Role(in.Role), in.ID)
		})

	huma.Register(api, huma.Operation{
		OperationID: "accept-quotation",
		Method:      http.MethodPost,
		Path:        "/api/v1/quotations/{id}/accept",
		Summary:     "Accept a quotation",
		Tags:        []string{"Quotations"},
	}, func(ctx context.Context, input *AcceptQuotationInput) (*ResultOutput, error) {
		res, err := svc.AcceptQuotation(ctx, app.Role(input.Role), input.ID, input.Body.Conditions)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResultOutput{Body: toResultResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-quotation",
		Method:      http.MethodPost,
		Path:        "/api/v1/quotations/{id}/reject",
		Summary:     "Reject a quotation",
		Tags:        []string{"Quotations"},
	}, func(ctx context.Context, input *RejectQuotationInput) (*ResultOutput, error) {
		res, err := svc.RejectQuotation(ctx, app.Role(input.Role), input.ID, input.Body.Reason)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResultOutput{Body: toResultResponse(res)}, nil
	})

	registerCommand(api, "delete-quotation", http.MethodDelete, "/api/v1/quotations/{id}",
		"Delete a quotation, cancelling its critical order first", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.DeleteQuotation(ctx, app.Role(in.Role), in.ID)
		})

	registerView(api, "get-quotation", "/api/v1/quotations/{id}", "Get a quotation with resolved relations", svc.GetQuotationView)

	// Orders.
	huma.Register(api, huma.Operation{
		OperationID: "record-payment",
		Method:      http.MethodPost,
		Path:        "/api/v1/orders/{id}/payments",
		Summary:     "Record and complete a payment against an order",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *RecordPaymentInput) (*ResultOutput, error) {
		res, err := svc.RecordPayment(ctx, app.Role(input.Role), input.ID, input.Body.Amount, input.Body.Method)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResultOutput{Body: toResultResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-public-payment",
		Method:      http.MethodPost,
		Path:        "/api/v1/public/orders/{id}/payments",
		Summary:     "Record a payment as an anonymous customer",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *RecordPaymentInput) (*ResultOutput, error) {
		res, err := svc.RecordPublicPayment(ctx, app.Role(input.Role), input.ID, input.Body.Amount, input.Body.Method)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResultOutput{Body: toResultResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-delivery-appointment",
		Method:      http.MethodPost,
		Path:        "/api/v1/orders/{id}/appointments",
		Summary:     "Schedule a delivery appointment for an order",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *CreateAppointmentInput) (*ResultOutput, error) {
		res, err := svc.CreateDeliveryAppointment(ctx, app.Role(input.Role), input.ID, input.Body.Date, input.Body.Address)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResultOutput{Body: toResultResponse(res)}, nil
	})

	registerCommand(api, "cancel-order", http.MethodPost, "/api/v1/orders/{id}/cancel",
		"Cancel an order", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.CancelOrder(ctx, app.Role(in.Role), in.ID)
		})

	registerCommand(api, "complete-order", http.MethodPost, "/api/v1/orders/{id}/complete",
		"Close out a delivered order", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.CompleteOrder(ctx, app.Role(in.Role), in.ID)
		})

	registerCommand(api, "refund-order", http.MethodPost, "/api/v1/orders/{id}/refund",
		"Mark an order's payments as refunded", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.RefundOrder(ctx, app.Role(in.Role), in.ID)
		})

	registerView(api, "get-order", "/api/v1/orders/{id}", "Get an order with resolved relations", svc.GetOrderView)

	// Appointments.
	registerCommand(api, "confirm-appointment", http.MethodPost, "/api/v1/appointments/{id}/confirm",
		"Confirm a scheduled appointment", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.ConfirmAppointment(ctx, app.Role(in.Role), in.ID)
		})

	registerCommand(api, "cancel-appointment", http.MethodPost, "/api/v1/appointments/{id}/cancel",
		"Cancel an appointment", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.CancelAppointment(ctx, app.Role(in.Role), in.ID)
		})

	registerView(api, "get-appointment", "/api/v1/appointments/{id}", "Get an appointment with resolved relations", svc.GetAppointmentView)

	// Deliveries.
	huma.Register(api, huma.Operation{
		OperationID: "schedule-delivery",
		Method:      http.MethodPost,
		Path:        "/api/v1/deliveries/{id}/schedule",
		Summary:     "Schedule a pending delivery",
		Tags:        []string{"Deliveries"},
	}, func(ctx context.Context, input *ScheduleDeliveryInput) (*ResultOutput, error) {
		res, err := svc.ScheduleDelivery(ctx, app.Role(input.Role), input.ID, input.Body.Date)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResultOutput{Body: toResultResponse(res)}, nil
	})

	registerCommand(api, "dispatch-delivery", http.MethodPost, "/api/v1/deliveries/{id}/dispatch",
		"Mark a delivery as in transit", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.DispatchDelivery(ctx, app.Role(in.Role), in.ID)
		})

	registerCommand(api, "confirm-delivery", http.MethodPost, "/api/v1/deliveries/{id}/confirm",
		"Confirm the vehicle was handed over", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.ConfirmDelivery(ctx, app.Role(in.Role), in.ID)
		})

	registerCommand(api, "cancel-delivery", http.MethodPost, "/api/v1/deliveries/{id}/cancel",
		"Call off a delivery", func(ctx context.Context, in *TransitionInput) (app.Result, error) {
			return svc.CancelDelivery(ctx, app.Role(in.Role), in.ID)
		})

	registerView(api, "get-delivery", "/api/v1/deliveries/{id}", "Get a delivery with resolved relations", svc.GetDeliveryView)
}

// registerCommand wires a body-less transition command.
func registerCommand(api huma.API, opID, method, path, summary string, fn func(context.Context, *TransitionInput) (app.Result, error)) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      method,
		Path:        path,
		Summary:     summary,
		Tags:        []string{"Workflow"},
	}, func(ctx context.Context, input *TransitionInput) (*ResultOutput, error) {
		res, err := fn(ctx, input)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ResultOutput{Body: toResultResponse(res)}, nil
	})
}

// registerView wires a read-side query returning the resolved document.
func registerView(api huma.API, opID, path, summary string, fn func(context.Context, string) (domain.Record, error)) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodGet,
		Path:        path,
		Summary:     summary,
		Tags:        []string{"Views"},
	}, func(ctx context.Context, input *ViewInput) (*ViewOutput, error) {
		rec, err := fn(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ViewOutput{Body: rec}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrNotPermitted) {
		return huma.Error403Forbidden(err.Error())
	}

	var rej *domain.Rejection
	if errors.As(err, &rej) {
		switch rej.Reason {
		case domain.ReasonNotFound:
			return huma.Error404NotFound(rej.Error())
		case domain.ReasonConcurrentModification, domain.ReasonDuplicateSideEffect:
			return huma.Error409Conflict(rej.Error())
		case domain.ReasonIllegalTransition, domain.ReasonExpired, domain.ReasonUnsatisfiedPrecondition:
			return huma.Error422UnprocessableEntity(rej.Error())
		case domain.ReasonUpstreamUnavailable:
			return huma.Error503ServiceUnavailable(rej.Error())
		}
	}

	return huma.Error500InternalServerError("internal server error")
}
