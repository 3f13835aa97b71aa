package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderkeeper/internal/domain/ledger"
)

const ledgerColumns = `id, order_id, amount, payment_mode, date, type, synced, created_at`

// AppendSale appends a ledger entry. For sale-type entries it is idempotent:
// if a sale already exists for the order the existing id is returned and no
// row is inserted. The lookup runs against the same executor as the insert so
// concurrent retries inside one transaction cannot race past the guard.
func (s *Store) AppendSale(ctx context.Context, e Execer, entry *ledger.Entry) (string, error) {
	ex := s.exec(e)

	if entry.Type == ledger.TypeSale {
		var existing string
		err := ex.QueryRowContext(ctx,
			`SELECT id FROM sales_ledger WHERE order_id = ? AND type = ?`,
			entry.OrderID, ledger.TypeSale).Scan(&existing)
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, sql.ErrNoRows):
			return "", fmt.Errorf("check existing sale for order %s: %w", entry.OrderID, err)
		}
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO sales_ledger (`+ledgerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrderID, entry.Amount, entry.PaymentMode,
		entry.Date, entry.Type, entry.Synced, entry.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert ledger entry %s: %w", entry.ID, err)
	}
	return entry.ID, nil
}

// GetSale returns the sale-type entry for an order, if any.
func (s *Store) GetSale(ctx context.Context, e Execer, orderID string) (*ledger.Entry, error) {
	row := s.exec(e).QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM sales_ledger WHERE order_id = ? AND type = ?`,
		orderID, ledger.TypeSale)

	var entry ledger.Entry
	err := row.Scan(
		&entry.ID, &entry.OrderID, &entry.Amount, &entry.PaymentMode,
		&entry.Date, &entry.Type, &entry.Synced, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return &entry, nil
}

// UnsyncedSales returns ledger entries not yet confirmed against the server.
func (s *Store) UnsyncedSales(ctx context.Context) ([]*ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM sales_ledger WHERE synced = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query unsynced sales: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID, &entry.OrderID, &entry.Amount, &entry.PaymentMode,
			&entry.Date, &entry.Type, &entry.Synced, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// MarkSaleSynced flips one ledger entry to synced. Returns the number of
// rows touched so the caller can detect a concurrently removed entry.
func (s *Store) MarkSaleSynced(ctx context.Context, e Execer, id string) (int64, error) {
	res, err := s.exec(e).ExecContext(ctx,
		`UPDATE sales_ledger SET synced = 1 WHERE id = ? AND synced = 0`, id)
	if err != nil {
		return 0, fmt.Errorf("mark sale %s synced: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
