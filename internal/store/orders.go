package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orderkeeper/internal/domain/order"
)

const orderColumns = `id, server_id, order_number, status, payment_status, payment_mode,
	items, total, order_type, table_id, table_name, created_at, updated_at,
	sync_status, sync_attempts, version, source`

// SaveOrder inserts a new order row. The caller decides the initial version.
func (s *Store) SaveOrder(ctx context.Context, e Execer, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	_, err = s.exec(e).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ServerID, o.OrderNumber, o.Status, o.PaymentStatus, o.PaymentMode,
		string(items), o.Total, o.OrderType, o.TableID, o.TableName, o.CreatedAt, o.UpdatedAt,
		o.SyncStatus, o.SyncAttempts, o.Version, o.Source,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

// GetOrder reads a single order by its local id.
func (s *Store) GetOrder(ctx context.Context, e Execer, id string) (*order.Order, error) {
	row := s.exec(e).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

// ListOrders returns every order, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]*order.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// ListOrdersByStatus returns orders with the given status, newest first.
func (s *Store) ListOrdersByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY created_at DESC`, status)
}

// ListUnservedOrders returns orders whose status is not served, newest first.
func (s *Store) ListUnservedOrders(ctx context.Context) ([]*order.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status != ? ORDER BY created_at DESC`,
		order.StatusServed)
}

// ListServedOrders returns up to limit served orders, newest first.
func (s *Store) ListServedOrders(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY created_at DESC LIMIT ?`,
		order.StatusServed, limit)
}

// UpdateOrder performs a read-modify-write of one order: it loads the row,
// applies mutate, bumps the version by exactly one, stamps updated_at and
// writes everything back. Returns order.ErrNotFound when the row is absent.
// Any error from mutate aborts the update with no write.
func (s *Store) UpdateOrder(ctx context.Context, e Execer, id string, mutate func(o *order.Order) error) (*order.Order, error) {
	ex := s.exec(e)

	o, err := s.GetOrder(ctx, ex, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(o); err != nil {
		return nil, err
	}

	o.Version++
	o.UpdatedAt = time.Now().UTC()

	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal order items: %w", err)
	}

	res, err := ex.ExecContext(ctx, `
		UPDATE orders SET
			server_id = ?, order_number = ?, status = ?, payment_status = ?,
			payment_mode = ?, items = ?, total = ?, order_type = ?,
			table_id = ?, table_name = ?, updated_at = ?,
			sync_status = ?, sync_attempts = ?, version = ?, source = ?
		WHERE id = ?`,
		o.ServerID, o.OrderNumber, o.Status, o.PaymentStatus,
		o.PaymentMode, string(items), o.Total, o.OrderType,
		o.TableID, o.TableName, o.UpdatedAt,
		o.SyncStatus, o.SyncAttempts, o.Version, o.Source,
		o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, order.ErrNotFound
	}
	return o, nil
}

// DeleteOrder removes an order row. Returns order.ErrNotFound when absent.
func (s *Store) DeleteOrder(ctx context.Context, e Execer, id string) error {
	res, err := s.exec(e).ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o     order.Order
		items string
	)
	err := row.Scan(
		&o.ID, &o.ServerID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.PaymentMode,
		&items, &o.Total, &o.OrderType, &o.TableID, &o.TableName, &o.CreatedAt, &o.UpdatedAt,
		&o.SyncStatus, &o.SyncAttempts, &o.Version, &o.Source,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &o, nil
}
