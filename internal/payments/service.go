// Package payments transitions an order to paid/served, writes the ledger
// entry and enqueues the sync intent as one atomic unit.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"orderkeeper/internal/domain/ledger"
	"orderkeeper/internal/domain/order"
	"orderkeeper/internal/domain/syncq"
	"orderkeeper/internal/netmon"
	"orderkeeper/internal/store"
)

// Kicker triggers a sync cycle without blocking the caller.
type Kicker interface {
	Kick()
}

type Service struct {
	store   *store.Store
	monitor *netmon.Monitor
	syncer  Kicker
	log     *slog.Logger
}

func NewService(st *store.Store, monitor *netmon.Monitor, syncer Kicker, log *slog.Logger) *Service {
	return &Service{
		store:   st,
		monitor: monitor,
		syncer:  syncer,
		log:     log.With("component", "payments"),
	}
}

// CheckResult is the read-only payment precondition verdict for a caller
// that wants to gate its payment UI.
type CheckResult struct {
	CanPay bool   `json:"can_pay"`
	Reason string `json:"reason,omitempty"`
}

// CanProcessPayment runs the existence and state preconditions without
// touching connectivity, so a cash payment screen can be shown offline.
func (s *Service) CanProcessPayment(ctx context.Context, orderID string) (CheckResult, error) {
	o, err := s.store.GetOrder(ctx, nil, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return CheckResult{Reason: "order not found"}, nil
		}
		return CheckResult{}, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return CheckResult{Reason: "order is already paid"}, nil
	}
	if o.Status != order.StatusReady {
		return CheckResult{Reason: "order must be ready to process payment"}, nil
	}
	return CheckResult{CanPay: true}, nil
}

// Process records a payment. Preconditions are checked before any mutation;
// the state change, the ledger append and the sync intent then commit as a
// single multi-table transaction.
//
// Cash payments work fully offline. Online payments require the monitor to
// allow outbound calls right now, so an open breaker fast-fails them.
func (s *Service) Process(ctx context.Context, orderID string, mode order.PaymentMode) (*order.Order, error) {
	if !mode.Valid() {
		return nil, &order.ValidationError{Fields: []string{
			fmt.Sprintf("payment_mode %q is not one of cash, online", mode),
		}}
	}

	o, err := s.store.GetOrder(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	// Paid wins over ready: a second attempt on an order that was just paid
	// (and is therefore served) must report the double payment, not the
	// state transition.
	if o.PaymentStatus == order.PaymentPaid {
		return nil, order.ErrAlreadyPaid
	}
	if o.Status != order.StatusReady {
		return nil, order.ErrNotReady
	}
	if mode == order.PaymentOnline && !s.monitor.CanMakeAPICall() {
		return nil, order.ErrOfflineBlocked
	}

	now := time.Now().UTC()

	// An online payment against a never-synced order needs the creation on
	// the server first. Queue it at high priority so the drain orders it
	// ahead, but do not block the payment itself.
	needsCreate := mode == order.PaymentOnline && o.ServerID == ""

	var updated *order.Order
	err = s.store.RunTransaction(ctx, func(e store.Execer) error {
		if needsCreate {
			if err := s.enqueueCreate(ctx, e, o, now); err != nil {
				return err
			}
		}

		var err error
		updated, err = s.store.UpdateOrder(ctx, e, orderID, func(o *order.Order) error {
			// Re-checked inside the transaction: a concurrent retry that
			// already paid must abort, not double-charge.
			if o.PaymentStatus == order.PaymentPaid {
				return order.ErrAlreadyPaid
			}
			if o.Status != order.StatusReady {
				return order.ErrNotReady
			}
			o.Status = order.StatusServed
			o.PaymentStatus = order.PaymentPaid
			o.PaymentMode = mode
			o.SyncStatus = order.SyncPending
			return nil
		})
		if err != nil {
			return err
		}

		if _, err := s.store.AppendSale(ctx, e, &ledger.Entry{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			Amount:      updated.Total,
			PaymentMode: string(mode),
			Date:        now,
			Type:        ledger.TypeSale,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		data, err := json.Marshal(syncq.PaymentData{
			PaymentMode: string(mode),
			Amount:      updated.Total,
			Version:     updated.Version,
		})
		if err != nil {
			return fmt.Errorf("marshal payment data: %w", err)
		}
		return s.store.EnqueueSync(ctx, e, &syncq.Item{
			ID:            uuid.NewString(),
			OperationType: syncq.OpPayment,
			OrderID:       orderID,
			Data:          data,
			Status:        syncq.StatusPending,
			Priority:      syncq.PriorityHigh,
			// Strictly after the create intent so the FIFO tie-break within
			// the high-priority band keeps creation first.
			CreatedAt: now.Add(time.Millisecond),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment processed",
		"order_id", orderID,
		"mode", mode,
		"amount", updated.Total,
	)

	if s.syncer != nil && s.monitor.IsOnline() {
		s.syncer.Kick()
	}
	return updated, nil
}

func (s *Service) enqueueCreate(ctx context.Context, e store.Execer, o *order.Order, now time.Time) error {
	snapshot, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("snapshot order: %w", err)
	}
	return s.store.EnqueueSync(ctx, e, &syncq.Item{
		ID:            uuid.NewString(),
		OperationType: syncq.OpCreateOrder,
		OrderID:       o.ID,
		Data:          snapshot,
		Status:        syncq.StatusPending,
		Priority:      syncq.PriorityHigh,
		CreatedAt:     now,
	})
}
