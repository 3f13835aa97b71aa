package api

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/domain/syncq"
	"orderkeeper/internal/netmon"
	"orderkeeper/internal/orders"
	"orderkeeper/internal/payments"
	"orderkeeper/internal/store"
)

type fakeSyncer struct {
	kicks int
}

func (s *fakeSyncer) Kick() { s.kicks++ }

func newTestHandler(t *testing.T) (*Handler, *store.Store, *fakeSyncer) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	monitor := netmon.New(nil, netmon.DefaultConfig(), log)
	syncer := &fakeSyncer{}

	h := &Handler{
		orders:   orders.NewService(st, monitor, syncer, log),
		payments: payments.NewService(st, monitor, syncer, log),
		monitor:  monitor,
		store:    st,
		syncer:   syncer,
		log:      log,
	}
	return h, st, syncer
}

func createTestOrder(t *testing.T, h *Handler) order.Order {
	t.Helper()

	in := &createOrderInput{}
	in.Body = orders.CreateRequest{
		Items:     []order.Item{{ID: "itm-1", Name: "Carbonara", Price: 16.00, Quantity: 1}},
		Total:     16.00,
		OrderType: order.TypeDineIn,
	}
	out, err := h.createOrder(context.Background(), in)
	require.NoError(t, err)
	return out.Body
}

func TestHandler_GetHealth(t *testing.T) {
	h, _, _ := newTestHandler(t)

	out, err := h.getHealth(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Body.Status)
}

func TestHandler_GetStatus(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	createTestOrder(t, h)

	out, err := h.getStatus(ctx, nil)
	require.NoError(t, err)
	assert.False(t, out.Body.Online)
	assert.False(t, out.Body.SyncAllowed)
	assert.Equal(t, 1, out.Body.PendingSyncItems)

	h.monitor.SetOnline(true)
	out, err = h.getStatus(ctx, nil)
	require.NoError(t, err)
	assert.True(t, out.Body.Online)
	assert.True(t, out.Body.SyncAllowed)
}

func TestHandler_OrderLifecycle(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	created := createTestOrder(t, h)
	assert.Equal(t, 1, created.Version)

	got, err := h.getOrder(ctx, &orderIDInput{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.Body.ID)

	statusIn := &updateStatusInput{ID: created.ID}
	statusIn.Body.Status = order.StatusReady
	updated, err := h.updateOrderStatus(ctx, statusIn)
	require.NoError(t, err)
	assert.Equal(t, order.StatusReady, updated.Body.Status)
	assert.Equal(t, 2, updated.Body.Version)

	list, err := h.listOrders(ctx, &listOrdersInput{})
	require.NoError(t, err)
	assert.Len(t, list.Body.Orders, 1)

	filtered, err := h.listOrders(ctx, &listOrdersInput{Status: "ready"})
	require.NoError(t, err)
	assert.Len(t, filtered.Body.Orders, 1)

	pending, err := h.listPendingOrders(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, pending.Body.Orders, 1)

	_, err = h.deleteOrder(ctx, &orderIDInput{ID: created.ID})
	require.NoError(t, err)

	_, err = h.getOrder(ctx, &orderIDInput{ID: created.ID})
	assertStatus(t, err, 404)
}

func TestHandler_PaymentFlow(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	created := createTestOrder(t, h)

	// Not ready yet: the check reports it, processing conflicts.
	check, err := h.checkPayment(ctx, &orderIDInput{ID: created.ID})
	require.NoError(t, err)
	assert.False(t, check.Body.CanPay)

	payIn := &processPaymentInput{ID: created.ID}
	payIn.Body.PaymentMode = order.PaymentCash
	_, err = h.processPayment(ctx, payIn)
	assertStatus(t, err, 409)

	statusIn := &updateStatusInput{ID: created.ID}
	statusIn.Body.Status = order.StatusReady
	_, err = h.updateOrderStatus(ctx, statusIn)
	require.NoError(t, err)

	paid, err := h.processPayment(ctx, payIn)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, paid.Body.PaymentStatus)
	assert.Equal(t, order.StatusServed, paid.Body.Status)

	served, err := h.listServedOrders(ctx, &servedOrdersInput{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, served.Body.Orders, 1)

	// Double payment maps to a conflict.
	_, err = h.processPayment(ctx, payIn)
	assertStatus(t, err, 409)

	// Online payment while offline maps to service-unavailable.
	other := createTestOrder(t, h)
	statusIn = &updateStatusInput{ID: other.ID}
	statusIn.Body.Status = order.StatusReady
	_, err = h.updateOrderStatus(ctx, statusIn)
	require.NoError(t, err)

	onlineIn := &processPaymentInput{ID: other.ID}
	onlineIn.Body.PaymentMode = order.PaymentOnline
	_, err = h.processPayment(ctx, onlineIn)
	assertStatus(t, err, 503)
}

func TestHandler_ValidationMapsTo422(t *testing.T) {
	h, _, _ := newTestHandler(t)

	in := &createOrderInput{}
	in.Body = orders.CreateRequest{OrderType: order.TypeDineIn}
	_, err := h.createOrder(context.Background(), in)
	assertStatus(t, err, 422)
}

func TestHandler_Sync(t *testing.T) {
	h, st, syncer := newTestHandler(t)
	ctx := context.Background()

	_, err := h.triggerSync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, syncer.kicks)

	require.NoError(t, st.EnqueueSync(ctx, nil, &syncq.Item{
		ID:            "dead-1",
		OperationType: syncq.OpCreateOrder,
		OrderID:       "o-1",
		Data:          []byte(`{}`),
		Status:        syncq.StatusFailed,
		RetryCount:    syncq.MaxRetries,
		Priority:      syncq.PriorityNormal,
		CreatedAt:     time.Now().UTC(),
		ErrorMessage:  "server error: boom",
	}))

	out, err := h.listDeadLetters(ctx, nil)
	require.NoError(t, err)
	require.Len(t, out.Body.Items, 1)
	assert.Equal(t, "dead-1", out.Body.Items[0].ID)
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()

	require.Error(t, err)
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected a status error, got %v", err)
	assert.Equal(t, want, se.GetStatus())
}
