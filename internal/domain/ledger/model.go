package ledger

import (
	"time"
)

type EntryType string

const (
	TypeSale       EntryType = "sale"
	TypeRefund     EntryType = "refund"
	TypeAdjustment EntryType = "adjustment"
)

// Entry is one realized revenue event. The ledger is kept separate from the
// mutable order record so the financial trail stays stable and deduplicated:
// at most one sale entry ever exists per order id.
type Entry struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Amount      float64   `json:"amount"`
	PaymentMode string    `json:"payment_mode"`
	Date        time.Time `json:"date"`
	Type        EntryType `json:"type"`
	Synced      bool      `json:"synced"`
	CreatedAt   time.Time `json:"created_at"`
}
