// Package syncengine drains the durable sync queue against the remote order
// service, pulls remote-only orders into the local store and reconciles the
// sales ledger. A cycle runs at most once at a time; it is triggered by
// connectivity transitions, by every local mutation while online and
// optionally on a timer.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/domain/syncq"
	"orderkeeper/internal/netmon"
	"orderkeeper/internal/remote"
	"orderkeeper/internal/store"
)

// ErrSyncInProgress is returned when a cycle is already running; the caller
// lost nothing, the running cycle will pick its work up.
var ErrSyncInProgress = errors.New("sync already running")

// RemoteClient is the slice of the remote order service the engine uses.
type RemoteClient interface {
	FetchOrders(ctx context.Context) ([]remote.RemoteOrder, error)
	CreateOrder(ctx context.Context, o *order.Order) (*remote.CreateResult, error)
	UpdateOrder(ctx context.Context, serverID string, o *order.Order) error
	DeleteOrder(ctx context.Context, serverID string) error
	PostPayment(ctx context.Context, serverID string, mode string, amount float64) error
}

type Engine struct {
	store    *store.Store
	remote   RemoteClient
	monitor  *netmon.Monitor
	log      *slog.Logger
	cron     *cron.Cron
	interval time.Duration

	mu      sync.Mutex
	syncing bool
}

func New(st *store.Store, rc RemoteClient, monitor *netmon.Monitor, interval time.Duration, log *slog.Logger) *Engine {
	return &Engine{
		store:    st,
		remote:   rc,
		monitor:  monitor,
		log:      log.With("component", "syncengine"),
		cron:     cron.New(),
		interval: interval,
	}
}

// Start subscribes the engine to connectivity transitions and, when an
// interval is configured, schedules background cycles.
func (e *Engine) Start() error {
	e.monitor.Subscribe(func(online bool) {
		if online {
			e.Kick()
		}
	})

	if e.interval > 0 {
		spec := fmt.Sprintf("@every %s", e.interval)
		if _, err := e.cron.AddFunc(spec, e.Kick); err != nil {
			return fmt.Errorf("schedule background sync: %w", err)
		}
		e.cron.Start()
	}
	return nil
}

func (e *Engine) Stop() {
	e.cron.Stop()
}

// Kick starts a sync cycle without blocking the caller. Overlapping kicks
// collapse into the cycle already in flight.
func (e *Engine) Kick() {
	go func() {
		if err := e.StartSync(context.Background()); err != nil && !errors.Is(err, ErrSyncInProgress) {
			e.log.Error("sync cycle failed", "error", err)
		}
	}()
}

// StartSync runs one full cycle: pull reconciliation, queue drain, sales
// reconciliation. Transient failures are logged and retried on the next
// cycle; they never reach the caller that triggered the original mutation.
func (e *Engine) StartSync(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	if !e.monitor.CanMakeAPICall() {
		e.log.Debug("skipping sync cycle, network unavailable")
		return nil
	}

	started := time.Now()
	e.log.Info("sync cycle started")

	if err := e.reconcilePull(ctx); err != nil {
		e.log.Warn("server reconciliation failed", "error", err)
	}
	e.drainQueue(ctx)
	e.reconcileSales(ctx)

	e.log.Info("sync cycle finished", "duration", time.Since(started))
	return nil
}

// IsSyncing reports whether a cycle is currently in flight.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// reconcilePull fetches the server's order list and inserts every order
// whose local-correlation id is unknown here, as already-synced. It is a
// one-way pull for orders created from another session and never overwrites
// an existing local record.
func (e *Engine) reconcilePull(ctx context.Context) error {
	remoteOrders, err := e.remote.FetchOrders(ctx)
	if err != nil {
		return err
	}

	for _, ro := range remoteOrders {
		if ro.LocalID == "" {
			continue
		}
		_, err := e.store.GetOrder(ctx, nil, ro.LocalID)
		if err == nil {
			continue
		}
		if !errors.Is(err, order.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		o := &order.Order{
			ID:            ro.LocalID,
			ServerID:      ro.ID,
			OrderNumber:   ro.OrderNumber,
			Status:        order.Status(ro.Status),
			PaymentStatus: order.PaymentStatus(ro.PaymentStatus),
			Items:         ro.Items,
			Total:         ro.Total,
			OrderType:     order.Type(ro.OrderType),
			TableID:       ro.TableID,
			TableName:     ro.TableName,
			CreatedAt:     ro.CreatedAt,
			UpdatedAt:     now,
			SyncStatus:    order.SyncSynced,
			Version:       1,
			Source:        order.SourceOnline,
		}
		if !o.Status.Valid() {
			o.Status = order.StatusPending
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}

		if err := e.store.SaveOrder(ctx, nil, o); err != nil {
			e.log.Warn("failed to pull remote order", "local_id", ro.LocalID, "error", err)
			continue
		}
		e.log.Info("pulled remote order", "local_id", ro.LocalID, "server_id", ro.ID)
	}
	return nil
}

// drainQueue processes pending items in priority-then-FIFO order. The loop
// stops early when connectivity drops mid-drain.
func (e *Engine) drainQueue(ctx context.Context) {
	items, err := e.store.PendingSyncItems(ctx)
	if err != nil {
		e.log.Error("failed to read sync queue", "error", err)
		return
	}

	for _, item := range items {
		if !e.monitor.CanMakeAPICall() {
			e.log.Info("connectivity lost, stopping queue drain")
			return
		}

		now := time.Now().UTC()
		item.Status = syncq.StatusProcessing
		item.LastAttempt = &now
		if err := e.store.UpdateSyncItem(ctx, nil, item); err != nil {
			e.log.Error("failed to mark sync item processing", "item_id", item.ID, "error", err)
			continue
		}

		if err := e.executeItem(ctx, item); err != nil {
			e.recordFailure(ctx, item, err)
			continue
		}

		if err := e.store.DequeueSync(ctx, nil, item.ID); err != nil && !errors.Is(err, syncq.ErrNotFound) {
			e.log.Error("failed to dequeue sync item", "item_id", item.ID, "error", err)
		}
		e.log.Debug("sync item completed", "item_id", item.ID, "operation", item.OperationType)
	}
}

// executeItem performs the network call for one queue item and applies the
// server result. Business fields of the order are never touched on success;
// only identity fields (create) and the sync status flip.
func (e *Engine) executeItem(ctx context.Context, item *syncq.Item) error {
	o, err := e.store.GetOrder(ctx, nil, item.OrderID)
	if err != nil && !errors.Is(err, order.ErrNotFound) {
		return err
	}

	switch item.OperationType {
	case syncq.OpCreateOrder:
		// Identity already assigned, so an earlier create push for this order
		// ran first (the payment path queues a second, high-priority create
		// for never-synced orders). Re-posting would duplicate the order on
		// the server; the item is already satisfied.
		if o != nil && o.ServerID != "" {
			return e.markOrderSynced(ctx, item.OrderID)
		}
		payload := o
		if payload == nil {
			// Order deleted locally after creation; the server still learns
			// about it so the queued delete that follows has a target.
			payload = &order.Order{}
			if err := json.Unmarshal(item.Data, payload); err != nil {
				return fmt.Errorf("decode create snapshot: %w", err)
			}
		}
		res, err := e.remote.CreateOrder(ctx, payload)
		if err != nil {
			return err
		}
		return e.applyCreateResult(ctx, item.OrderID, res)

	case syncq.OpPayment:
		if o == nil {
			e.log.Warn("dropping payment sync for deleted order", "order_id", item.OrderID)
			return nil
		}
		// Queue order across cycles is not guaranteed, so never assume the
		// create_order already ran.
		if o.ServerID == "" {
			return syncq.ErrOrderNotSynced
		}
		var pd syncq.PaymentData
		if err := json.Unmarshal(item.Data, &pd); err != nil {
			return fmt.Errorf("decode payment data: %w", err)
		}
		if err := e.remote.PostPayment(ctx, o.ServerID, pd.PaymentMode, pd.Amount); err != nil {
			return err
		}
		return e.markOrderSynced(ctx, item.OrderID)

	case syncq.OpUpdateOrder:
		if o == nil {
			return nil
		}
		if o.ServerID == "" {
			return syncq.ErrOrderNotSynced
		}
		if err := e.remote.UpdateOrder(ctx, o.ServerID, o); err != nil {
			return err
		}
		return e.markOrderSynced(ctx, item.OrderID)

	case syncq.OpDeleteOrder:
		var snap order.Order
		if len(item.Data) > 0 {
			if err := json.Unmarshal(item.Data, &snap); err != nil {
				return fmt.Errorf("decode delete snapshot: %w", err)
			}
		}
		if snap.ServerID == "" {
			// Never synced; nothing exists remotely.
			return nil
		}
		return e.remote.DeleteOrder(ctx, snap.ServerID)

	default:
		return fmt.Errorf("unknown sync operation %q", item.OperationType)
	}
}

// applyCreateResult attaches the server-assigned identity. ServerID and
// OrderNumber are write-once; an order deleted in the meantime is fine.
func (e *Engine) applyCreateResult(ctx context.Context, orderID string, res *remote.CreateResult) error {
	_, err := e.store.UpdateOrder(ctx, nil, orderID, func(o *order.Order) error {
		if o.ServerID == "" {
			o.ServerID = res.ServerID
		}
		if o.OrderNumber == "" {
			o.OrderNumber = res.OrderNumber
		}
		o.SyncStatus = order.SyncSynced
		return nil
	})
	if errors.Is(err, order.ErrNotFound) {
		return nil
	}
	return err
}

// markOrderSynced flips only the sync status; status and payment_status were
// decided locally and stay untouched.
func (e *Engine) markOrderSynced(ctx context.Context, orderID string) error {
	_, err := e.store.UpdateOrder(ctx, nil, orderID, func(o *order.Order) error {
		o.SyncStatus = order.SyncSynced
		return nil
	})
	if errors.Is(err, order.ErrNotFound) {
		return nil
	}
	return err
}

// recordFailure persists retry bookkeeping. After the retry budget the item
// is frozen as a dead letter with its error message retained for operators,
// never silently dropped.
func (e *Engine) recordFailure(ctx context.Context, item *syncq.Item, cause error) {
	now := time.Now().UTC()
	item.RetryCount++
	item.LastAttempt = &now
	item.ErrorMessage = cause.Error()

	if item.RetryCount >= syncq.MaxRetries {
		item.Status = syncq.StatusFailed
		e.log.Error("sync item dead-lettered",
			"item_id", item.ID,
			"operation", item.OperationType,
			"order_id", item.OrderID,
			"error", cause,
		)
		if _, err := e.store.UpdateOrder(ctx, nil, item.OrderID, func(o *order.Order) error {
			o.SyncStatus = order.SyncFailed
			o.SyncAttempts = item.RetryCount
			return nil
		}); err != nil && !errors.Is(err, order.ErrNotFound) {
			e.log.Error("failed to mark order sync-failed", "order_id", item.OrderID, "error", err)
		}
	} else {
		item.Status = syncq.StatusPending
		e.log.Warn("sync item failed, will retry",
			"item_id", item.ID,
			"operation", item.OperationType,
			"retry_count", item.RetryCount,
			"error", cause,
		)
	}

	if err := e.store.UpdateSyncItem(ctx, nil, item); err != nil {
		e.log.Error("failed to persist sync item failure", "item_id", item.ID, "error", err)
	}
}

// reconcileSales flips unsynced ledger entries once the owning order's sync
// has confirmed. Each entry runs in its own small transaction so a
// concurrent change aborts only that entry.
func (e *Engine) reconcileSales(ctx context.Context) {
	entries, err := e.store.UnsyncedSales(ctx)
	if err != nil {
		e.log.Error("failed to read unsynced sales", "error", err)
		return
	}

	for _, entry := range entries {
		err := e.store.RunTransaction(ctx, func(ex store.Execer) error {
			o, err := e.store.GetOrder(ctx, ex, entry.OrderID)
			if err != nil {
				if errors.Is(err, order.ErrNotFound) {
					return nil
				}
				return err
			}
			if o.SyncStatus != order.SyncSynced {
				return nil
			}
			n, err := e.store.MarkSaleSynced(ctx, ex, entry.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				e.log.Debug("ledger entry synced", "entry_id", entry.ID, "order_id", entry.OrderID)
			}
			return nil
		})
		if err != nil {
			e.log.Warn("sales reconciliation failed", "entry_id", entry.ID, "error", err)
		}
	}
}
