package syncq

import (
	"encoding/json"
	"time"
)

type Operation string

const (
	OpCreateOrder Operation = "create_order"
	OpUpdateOrder Operation = "update_order"
	OpDeleteOrder Operation = "delete_order"
	OpPayment     Operation = "payment"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const (
	PriorityNormal = 1
	PriorityHigh   = 10
)

// MaxRetries is the retry budget before an item becomes a dead letter.
const MaxRetries = 5

// Item is one durable outbound intent awaiting transmission to the remote
// order service. Items never mutate business fields of the order directly;
// successful execution only flips the order's sync status.
type Item struct {
	ID            string          `json:"id"`
	OperationType Operation       `json:"operation_type"`
	OrderID       string          `json:"order_id"`
	Data          json.RawMessage `json:"data,omitempty"`
	Status        Status          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	Priority      int             `json:"priority"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttempt   *time.Time      `json:"last_attempt,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// PaymentData is the payload snapshot carried by a payment item.
type PaymentData struct {
	PaymentMode string  `json:"payment_mode"`
	Amount      float64 `json:"amount"`
	Version     int     `json:"version"`
}