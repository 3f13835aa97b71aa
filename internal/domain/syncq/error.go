package syncq

import (
	"errors"
)

var (
	ErrNotFound = errors.New("sync queue item not found")

	// ErrOrderNotSynced marks a payment item whose order has no server id
	// yet. It is transient: the item returns to the queue and is retried
	// after the corresponding create_order has been confirmed.
	ErrOrderNotSynced = errors.New("order has not been synced to the server yet")
)
