// Package orders validates and mutates order records, always against the
// local durable store. Mutations are authoritative immediately; the sync
// engine propagates them when connectivity allows.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

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
		log:     log.With("component", "orders"),
	}
}

type CreateRequest struct {
	Items     []order.Item `json:"items"`
	Total     float64      `json:"total"`
	OrderType order.Type   `json:"order_type"`
	TableID   string       `json:"table_id,omitempty"`
	TableName string       `json:"table_name,omitempty"`
}

// Create validates and persists a new order at version 1 and enqueues a
// create_order intent in the same transaction. The sync engine is kicked
// only when currently online; the queue item exists either way.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*order.Order, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &order.Order{
		ID:            uuid.NewString(),
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Items:         req.Items,
		Total:         req.Total,
		OrderType:     req.OrderType,
		TableID:       req.TableID,
		TableName:     req.TableName,
		CreatedAt:     now,
		UpdatedAt:     now,
		SyncStatus:    order.SyncPending,
		Version:       1,
		Source:        order.SourceOffline,
	}

	snapshot, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("snapshot order: %w", err)
	}

	err = s.store.RunTransaction(ctx, func(e store.Execer) error {
		if err := s.store.SaveOrder(ctx, e, o); err != nil {
			return err
		}
		return s.store.EnqueueSync(ctx, e, &syncq.Item{
			ID:            uuid.NewString(),
			OperationType: syncq.OpCreateOrder,
			OrderID:       o.ID,
			Data:          snapshot,
			Status:        syncq.StatusPending,
			Priority:      syncq.PriorityNormal,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created", "order_id", o.ID, "total", o.Total, "type", o.OrderType)
	s.kick()
	return o, nil
}

// UpdateStatus advances an order through the kitchen flow.
func (s *Service) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	if !status.Valid() {
		return nil, &order.ValidationError{Fields: []string{
			fmt.Sprintf("status %q is not a valid order status", status),
		}}
	}

	var updated *order.Order
	err := s.store.RunTransaction(ctx, func(e store.Execer) error {
		var err error
		updated, err = s.store.UpdateOrder(ctx, e, id, func(o *order.Order) error {
			o.Status = status
			o.SyncStatus = order.SyncPending
			return nil
		})
		if err != nil {
			return err
		}
		return s.enqueueUpdate(ctx, e, updated)
	})
	if err != nil {
		return nil, err
	}

	s.kick()
	return updated, nil
}

// Edit replaces the items and total of an order.
func (s *Service) Edit(ctx context.Context, id string, items []order.Item, total float64) (*order.Order, error) {
	if fields := validateItems(items, total); len(fields) > 0 {
		return nil, &order.ValidationError{Fields: fields}
	}

	var updated *order.Order
	err := s.store.RunTransaction(ctx, func(e store.Execer) error {
		var err error
		updated, err = s.store.UpdateOrder(ctx, e, id, func(o *order.Order) error {
			o.Items = items
			o.Total = total
			o.SyncStatus = order.SyncPending
			return nil
		})
		if err != nil {
			return err
		}
		return s.enqueueUpdate(ctx, e, updated)
	})
	if err != nil {
		return nil, err
	}

	s.kick()
	return updated, nil
}

// Delete removes an order locally and queues the remote deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.RunTransaction(ctx, func(e store.Execer) error {
		o, err := s.store.GetOrder(ctx, e, id)
		if err != nil {
			return err
		}
		if err := s.store.DeleteOrder(ctx, e, id); err != nil {
			return err
		}

		snapshot, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("snapshot order: %w", err)
		}
		return s.store.EnqueueSync(ctx, e, &syncq.Item{
			ID:            uuid.NewString(),
			OperationType: syncq.OpDeleteOrder,
			OrderID:       id,
			Data:          snapshot,
			Status:        syncq.StatusPending,
			Priority:      syncq.PriorityNormal,
			CreatedAt:     time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("order deleted", "order_id", id)
	s.kick()
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return s.store.GetOrder(ctx, nil, id)
}

func (s *Service) GetAll(ctx context.Context) ([]*order.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *Service) GetByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	if !status.Valid() {
		return nil, &order.ValidationError{Fields: []string{
			fmt.Sprintf("status %q is not a valid order status", status),
		}}
	}
	return s.store.ListOrdersByStatus(ctx, status)
}

// PendingOrders returns every order still on the floor (status != served),
// newest first.
func (s *Service) PendingOrders(ctx context.Context) ([]*order.Order, error) {
	return s.store.ListUnservedOrders(ctx)
}

// ServedOrders returns the most recently served orders.
func (s *Service) ServedOrders(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListServedOrders(ctx, limit)
}

func (s *Service) enqueueUpdate(ctx context.Context, e store.Execer, o *order.Order) error {
	snapshot, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("snapshot order: %w", err)
	}
	return s.store.EnqueueSync(ctx, e, &syncq.Item{
		ID:            uuid.NewString(),
		OperationType: syncq.OpUpdateOrder,
		OrderID:       o.ID,
		Data:          snapshot,
		Status:        syncq.StatusPending,
		Priority:      syncq.PriorityNormal,
		CreatedAt:     time.Now().UTC(),
	})
}

func (s *Service) kick() {
	if s.syncer != nil && s.monitor.IsOnline() {
		s.syncer.Kick()
	}
}

func validateCreate(req CreateRequest) error {
	fields := validateItems(req.Items, req.Total)
	if !req.OrderType.Valid() {
		fields = append(fields, fmt.Sprintf("order_type %q is not one of DINE_IN, TAKEAWAY, DELIVERY", req.OrderType))
	}
	if len(fields) > 0 {
		return &order.ValidationError{Fields: fields}
	}
	return nil
}

func validateItems(items []order.Item, total float64) []string {
	var fields []string

	if len(items) == 0 {
		fields = append(fields, "items must not be empty")
	}
	for i, it := range items {
		if it.ID == "" {
			fields = append(fields, fmt.Sprintf("items[%d].id is required", i))
		}
		if it.Price <= 0 {
			fields = append(fields, fmt.Sprintf("items[%d].price must be positive", i))
		}
		if it.Quantity <= 0 {
			fields = append(fields, fmt.Sprintf("items[%d].quantity must be greater than zero", i))
		}
	}

	if total <= 0 {
		fields = append(fields, "total must be a positive number")
	} else if len(items) > 0 {
		if sum := order.ItemsTotal(items); math.Abs(sum-total) > 0.009 {
			fields = append(fields, fmt.Sprintf("total %.2f does not match item sum %.2f", total, sum))
		}
	}
	return fields
}
