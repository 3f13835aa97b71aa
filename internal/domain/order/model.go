package order

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusServed, StatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMode string

const (
	PaymentCash   PaymentMode = "cash"
	PaymentOnline PaymentMode = "online"
)

func (m PaymentMode) Valid() bool {
	return m == PaymentCash || m == PaymentOnline
}

type Type string

const (
	TypeDineIn   Type = "DINE_IN"
	TypeTakeaway Type = "TAKEAWAY"
	TypeDelivery Type = "DELIVERY"
)

func (t Type) Valid() bool {
	return t == TypeDineIn || t == TypeTakeaway || t == TypeDelivery
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

type Source string

const (
	SourceOffline Source = "offline"
	SourceOnline  Source = "online"
)

// Item is a single line of an order.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Order is the locally authoritative order record. While unsynced the local
// store is the single source of truth; the server only ever contributes the
// identity fields ServerID and OrderNumber, which are write-once.
type Order struct {
	ID            string        `json:"id"`
	ServerID      string        `json:"server_id,omitempty"`
	OrderNumber   string        `json:"order_number,omitempty"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMode   PaymentMode   `json:"payment_mode,omitempty"`
	Items         []Item        `json:"items"`
	Total         float64       `json:"total"`
	OrderType     Type          `json:"order_type"`
	TableID       string        `json:"table_id,omitempty"`
	TableName     string        `json:"table_name,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	SyncStatus    SyncStatus    `json:"sync_status"`
	SyncAttempts  int           `json:"sync_attempts"`
	Version       int           `json:"version"`
	Source        Source        `json:"source"`
}

// ItemsTotal recomputes the order total from its lines.
func ItemsTotal(items []Item) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}
