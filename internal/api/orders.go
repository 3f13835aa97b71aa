package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/orders"
)

type orderOutput struct {
	Body order.Order
}

type orderListOutput struct {
	Body struct {
		Orders []*order.Order `json:"orders"`
	}
}

type createOrderInput struct {
	Body orders.CreateRequest
}

type orderIDInput struct {
	ID string `path:"id" doc:"Local order identifier"`
}

type updateStatusInput struct {
	ID   string `path:"id"`
	Body struct {
		Status order.Status `json:"status" example:"preparing"`
	}
}

type editOrderInput struct {
	ID   string `path:"id"`
	Body struct {
		Items []order.Item `json:"items"`
		Total float64      `json:"total"`
	}
}

type listOrdersInput struct {
	Status string `query:"status" doc:"Filter by order status" required:"false"`
}

type servedOrdersInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
}

func (h *Handler) registerOrders(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        "POST",
		Path:          "/api/v1/orders",
		Summary:       "Create an order",
		Tags:          []string{"Orders"},
		DefaultStatus: http.StatusCreated,
	}, h.createOrder)

	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      "GET",
		Path:        "/api/v1/orders",
		Summary:     "List orders, optionally by status",
		Tags:        []string{"Orders"},
	}, h.listOrders)

	huma.Register(api, huma.Operation{
		OperationID: "list-pending-orders",
		Method:      "GET",
		Path:        "/api/v1/orders/pending",
		Summary:     "Unserved orders, newest first",
		Tags:        []string{"Orders"},
	}, h.listPendingOrders)

	huma.Register(api, huma.Operation{
		OperationID: "list-served-orders",
		Method:      "GET",
		Path:        "/api/v1/orders/served",
		Summary:     "Recently served orders",
		Tags:        []string{"Orders"},
	}, h.listServedOrders)

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      "GET",
		Path:        "/api/v1/orders/{id}",
		Summary:     "Fetch one order",
		Tags:        []string{"Orders"},
	}, h.getOrder)

	huma.Register(api, huma.Operation{
		OperationID: "update-order-status",
		Method:      "PATCH",
		Path:        "/api/v1/orders/{id}/status",
		Summary:     "Advance an order through its lifecycle",
		Tags:        []string{"Orders"},
	}, h.updateOrderStatus)

	huma.Register(api, huma.Operation{
		OperationID: "edit-order",
		Method:      "PUT",
		Path:        "/api/v1/orders/{id}",
		Summary:     "Replace an order's items and total",
		Tags:        []string{"Orders"},
	}, h.editOrder)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-order",
		Method:        "DELETE",
		Path:          "/api/v1/orders/{id}",
		Summary:       "Delete an order",
		Tags:          []string{"Orders"},
		DefaultStatus: http.StatusNoContent,
	}, h.deleteOrder)
}

func (h *Handler) createOrder(ctx context.Context, in *createOrderInput) (*orderOutput, error) {
	o, err := h.orders.Create(ctx, in.Body)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &orderOutput{Body: *o}, nil
}

func (h *Handler) listOrders(ctx context.Context, in *listOrdersInput) (*orderListOutput, error) {
	var (
		list []*order.Order
		err  error
	)
	if in.Status == "" {
		list, err = h.orders.GetAll(ctx)
	} else {
		list, err = h.orders.GetByStatus(ctx, order.Status(in.Status))
	}
	if err != nil {
		return nil, h.mapError(err)
	}
	resp := &orderListOutput{}
	resp.Body.Orders = list
	return resp, nil
}

func (h *Handler) listPendingOrders(ctx context.Context, _ *struct{}) (*orderListOutput, error) {
	list, err := h.orders.PendingOrders(ctx)
	if err != nil {
		return nil, h.mapError(err)
	}
	resp := &orderListOutput{}
	resp.Body.Orders = list
	return resp, nil
}

func (h *Handler) listServedOrders(ctx context.Context, in *servedOrdersInput) (*orderListOutput, error) {
	list, err := h.orders.ServedOrders(ctx, in.Limit)
	if err != nil {
		return nil, h.mapError(err)
	}
	resp := &orderListOutput{}
	resp.Body.Orders = list
	return resp, nil
}

func (h *Handler) getOrder(ctx context.Context, in *orderIDInput) (*orderOutput, error) {
	o, err := h.orders.GetByID(ctx, in.ID)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &orderOutput{Body: *o}, nil
}

func (h *Handler) updateOrderStatus(ctx context.Context, in *updateStatusInput) (*orderOutput, error) {
	o, err := h.orders.UpdateStatus(ctx, in.ID, in.Body.Status)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &orderOutput{Body: *o}, nil
}

func (h *Handler) editOrder(ctx context.Context, in *editOrderInput) (*orderOutput, error) {
	o, err := h.orders.Edit(ctx, in.ID, in.Body.Items, in.Body.Total)
	if err != nil {
		return nil, h.mapError(err)
	}
	return &orderOutput{Body: *o}, nil
}

func (h *Handler) deleteOrder(ctx context.Context, in *orderIDInput) (*struct{}, error) {
	if err := h.orders.Delete(ctx, in.ID); err != nil {
		return nil, h.mapError(err)
	}
	return nil, nil
}
