package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderkeeper/internal/domain/syncq"
)

const queueColumns = `id, operation_type, order_id, data, status, retry_count,
	priority, created_at, last_attempt, error_message`

// EnqueueSync inserts a durable queue item alongside the mutation that
// requires propagation.
func (s *Store) EnqueueSync(ctx context.Context, e Execer, item *syncq.Item) error {
	_, err := s.exec(e).ExecContext(ctx, `
		INSERT INTO sync_queue (`+queueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.OperationType, item.OrderID, string(item.Data), item.Status,
		item.RetryCount, item.Priority, item.CreatedAt, item.LastAttempt, item.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("enqueue sync item %s: %w", item.ID, err)
	}
	return nil
}

// DequeueSync deletes a queue item after its operation succeeded.
func (s *Store) DequeueSync(ctx context.Context, e Execer, id string) error {
	res, err := s.exec(e).ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("dequeue sync item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return syncq.ErrNotFound
	}
	return nil
}

// UpdateSyncItem persists status, retry bookkeeping and the captured error
// message of a queue item.
func (s *Store) UpdateSyncItem(ctx context.Context, e Execer, item *syncq.Item) error {
	res, err := s.exec(e).ExecContext(ctx, `
		UPDATE sync_queue
		SET status = ?, retry_count = ?, last_attempt = ?, error_message = ?
		WHERE id = ?`,
		item.Status, item.RetryCount, item.LastAttempt, item.ErrorMessage, item.ID,
	)
	if err != nil {
		return fmt.Errorf("update sync item %s: %w", item.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return syncq.ErrNotFound
	}
	return nil
}

// PendingSyncItems returns items awaiting transmission, highest priority
// first and FIFO within a priority.
func (s *Store) PendingSyncItems(ctx context.Context) ([]*syncq.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+queueColumns+` FROM sync_queue
		WHERE status = ?
		ORDER BY priority DESC, created_at ASC`, syncq.StatusPending)
}

// FailedSyncItems returns dead letters parked for manual inspection.
func (s *Store) FailedSyncItems(ctx context.Context) ([]*syncq.Item, error) {
	return s.queryItems(ctx, `
		SELECT `+queueColumns+` FROM sync_queue
		WHERE status = ?
		ORDER BY created_at ASC`, syncq.StatusFailed)
}

// PendingSyncCount reports the queue depth for the status surface.
func (s *Store) PendingSyncCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE status = ?`, syncq.StatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending sync items: %w", err)
	}
	return n, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*syncq.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	var out []*syncq.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetSyncItem reads one queue item by id.
func (s *Store) GetSyncItem(ctx context.Context, e Execer, id string) (*syncq.Item, error) {
	row := s.exec(e).QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM sync_queue WHERE id = ?`, id)
	return scanItem(row)
}

func scanItem(row rowScanner) (*syncq.Item, error) {
	var (
		item syncq.Item
		data string
	)
	err := row.Scan(
		&item.ID, &item.OperationType, &item.OrderID, &data, &item.Status,
		&item.RetryCount, &item.Priority, &item.CreatedAt, &item.LastAttempt, &item.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, syncq.ErrNotFound
		}
		return nil, fmt.Errorf("scan sync item: %w", err)
	}
	if data != "" {
		item.Data = []byte(data)
	}
	return &item, nil
}
