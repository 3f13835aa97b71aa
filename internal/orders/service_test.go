package orders

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/domain/syncq"
	"orderkeeper/internal/netmon"
	"orderkeeper/internal/store"
)

type fakeKicker struct {
	kicks int
}

func (k *fakeKicker) Kick() { k.kicks++ }

func newTestService(t *testing.T) (*Service, *store.Store, *netmon.Monitor, *fakeKicker) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	monitor := netmon.New(nil, netmon.DefaultConfig(), log)
	kicker := &fakeKicker{}
	return NewService(st, monitor, kicker, log), st, monitor, kicker
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		Items: []order.Item{
			{ID: "itm-1", Name: "Pad Thai", Price: 12.50, Quantity: 2},
			{ID: "itm-2", Name: "Iced Tea", Price: 3.00, Quantity: 1},
		},
		Total:     28.00,
		OrderType: order.TypeDineIn,
		TableID:   "t-7",
		TableName: "Table 7",
	}
}

func TestService_Create(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 1, o.Version)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, order.SyncPending, o.SyncStatus)
	assert.Equal(t, order.SourceOffline, o.Source)

	// The mutation and its queue item land in one transaction.
	items, err := st.PendingSyncItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, syncq.OpCreateOrder, items[0].OperationType)
	assert.Equal(t, o.ID, items[0].OrderID)

	var snapshot order.Order
	require.NoError(t, json.Unmarshal(items[0].Data, &snapshot))
	assert.Equal(t, o.ID, snapshot.ID)
	assert.Equal(t, o.Total, snapshot.Total)
}

func TestService_Create_Validation(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(r *CreateRequest)
		wantMsg string
	}{
		{
			name:    "EmptyItems",
			mutate:  func(r *CreateRequest) { r.Items = nil },
			wantMsg: "items must not be empty",
		},
		{
			name:    "MissingItemID",
			mutate:  func(r *CreateRequest) { r.Items[0].ID = "" },
			wantMsg: "items[0].id is required",
		},
		{
			name:    "NonPositivePrice",
			mutate:  func(r *CreateRequest) { r.Items[0].Price = 0 },
			wantMsg: "items[0].price must be positive",
		},
		{
			name:    "ZeroQuantity",
			mutate:  func(r *CreateRequest) { r.Items[1].Quantity = 0 },
			wantMsg: "items[1].quantity must be greater than zero",
		},
		{
			name:    "NonPositiveTotal",
			mutate:  func(r *CreateRequest) { r.Total = 0 },
			wantMsg: "total must be a positive number",
		},
		{
			name:    "TotalMismatch",
			mutate:  func(r *CreateRequest) { r.Total = 99.99 },
			wantMsg: "does not match item sum",
		},
		{
			name:    "BadOrderType",
			mutate:  func(r *CreateRequest) { r.OrderType = "DRIVE_THRU" },
			wantMsg: "order_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := svc.Create(ctx, req)
			require.Error(t, err)
			assert.True(t, order.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	// Rejected requests leave no trace.
	all, err := st.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_UpdateStatus(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, o.ID, order.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPreparing, updated.Status)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, order.SyncPending, updated.SyncStatus)

	items, err := st.PendingSyncItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, syncq.OpUpdateOrder, items[1].OperationType)

	t.Run("InvalidStatus", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, o.ID, "vaporized")
		assert.True(t, order.IsValidation(err))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, "missing", order.StatusReady)
		assert.ErrorIs(t, err, order.ErrNotFound)
	})
}

func TestService_Edit(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	newItems := []order.Item{{ID: "itm-9", Name: "Green Curry", Price: 14.00, Quantity: 1}}
	updated, err := svc.Edit(ctx, o.ID, newItems, 14.00)
	require.NoError(t, err)
	assert.Equal(t, newItems, updated.Items)
	assert.Equal(t, 14.00, updated.Total)
	assert.Equal(t, 2, updated.Version)

	_, err = svc.Edit(ctx, o.ID, newItems, 100.00)
	assert.True(t, order.IsValidation(err))
}

func TestService_Delete(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, o.ID))

	_, err = svc.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)

	// The deletion intent survives the order row.
	items, err := st.PendingSyncItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, syncq.OpDeleteOrder, items[1].OperationType)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), order.ErrNotFound)
}

func TestService_Views(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	b, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, a.ID, order.StatusServed)
	require.NoError(t, err)

	pending, err := svc.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	served, err := svc.ServedOrders(ctx, 0)
	require.NoError(t, err)
	require.Len(t, served, 1)
	assert.Equal(t, a.ID, served[0].ID)

	byStatus, err := svc.GetByStatus(ctx, order.StatusServed)
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	_, err = svc.GetByStatus(ctx, "nope")
	assert.True(t, order.IsValidation(err))
}

func TestService_KicksSyncOnlyWhenOnline(t *testing.T) {
	svc, _, monitor, kicker := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, kicker.kicks, "offline mutations must not trigger a sync")

	monitor.SetOnline(true)
	_, err = svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, kicker.kicks)
}
