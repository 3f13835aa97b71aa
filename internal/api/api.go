// Package api exposes the engine's operations to the UI and admin
// collaborators over HTTP. It is a thin surface: every operation delegates
// to the order, payment or sync components and maps their error taxonomy
// onto status codes.
package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/netmon"
	"orderkeeper/internal/orders"
	"orderkeeper/internal/payments"
	"orderkeeper/internal/store"
)

// Syncer triggers an immediate sync cycle outside the schedule.
type Syncer interface {
	Kick()
}

type Handler struct {
	orders   *orders.Service
	payments *payments.Service
	monitor  *netmon.Monitor
	store    *store.Store
	syncer   Syncer
	log      *slog.Logger
}

// New builds a *chi.Mux with every operation registered through huma.
func New(ordersSvc *orders.Service, paymentsSvc *payments.Service, monitor *netmon.Monitor, st *store.Store, syncer Syncer, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("OrderKeeper API", "1.0.0")
	api := humachi.New(mux, config)

	h := &Handler{
		orders:   ordersSvc,
		payments: paymentsSvc,
		monitor:  monitor,
		store:    st,
		syncer:   syncer,
		log:      log.With("component", "api"),
	}

	h.registerHealth(api)
	h.registerStatus(api)
	h.registerOrders(api)
	h.registerPayments(api)
	h.registerSync(api)

	return mux
}

// mapError translates the engine's error taxonomy to HTTP problem responses.
// Validation and state errors surface synchronously with their reasons; sync
// failures never appear here because mutations succeed locally regardless.
func (h *Handler) mapError(err error) error {
	var ve *order.ValidationError
	switch {
	case errors.As(err, &ve):
		return huma.Error422UnprocessableEntity(ve.Error())
	case errors.Is(err, order.ErrNotFound):
		return huma.Error404NotFound("order not found")
	case errors.Is(err, order.ErrAlreadyPaid):
		return huma.Error409Conflict(order.ErrAlreadyPaid.Error())
	case errors.Is(err, order.ErrNotReady):
		return huma.Error409Conflict(order.ErrNotReady.Error())
	case errors.Is(err, order.ErrOfflineBlocked):
		return huma.Error503ServiceUnavailable(order.ErrOfflineBlocked.Error())
	default:
		h.log.Error("request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
