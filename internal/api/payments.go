package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/payments"
)

type processPaymentInput struct {
	ID   string `path:"id"`
	Body struct {
		PaymentMode order.PaymentMode `json:"payment_mode" example:"cash"`
	}
}

type paymentCheckOutput struct {
	Body payments.CheckResult
}

func (h *Handler) registerPayments(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "check-payment",
		Method:      "GET",
		Path:        "/api/v1/orders/{id}/payment/check",
		Summary:     "Report whether an order can take a payment",
		Tags:        []string{"Payments"},
	}, h.checkPayment)

	huma.Register(api, huma.Operation{
		OperationID: "process-payment",
		Method:      "POST",
		Path:        "/api/v1/orders/{id}/payment",
		Summary:     "Process a payment for a ready order",
		Tags:        []string{"Payments"},
	}, h.processPayment)
}

func (h *Handler) checkPayment(ctx context.Context, in *orderIDInput) (*paymentCheckOutput, error) {
	result, err := h.payments.CanProcessPayment(ctx, in.ID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &paymentCheckOutput{Body: result}, nil
}

func (h *Handler) processPayment(ctx context.Context, in *processPaymentInput) (*orderOutput, error) {
	o, err := h.payments.Process(ctx, in.ID, in.Body.PaymentMode)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &orderOutput{Body: *o}, nil
}
