package purchases

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Outstanding is an approved purchase transaction with undelivered volume.
// DeliveredVolume only moves when an unload against it is approved.
type Outstanding struct {
	TransactionID   uuid.UUID
	Date            time.Time
	PurchaseVolume  int64
	DeliveredVolume int64
}

// Remaining returns the volume still deliverable against this purchase.
func (o Outstanding) Remaining() int64 {
	return o.PurchaseVolume - o.DeliveredVolume
}

// Allocation attributes part of an unload's delivered volume to one
// purchase transaction.
type Allocation struct {
	PurchaseTransactionID uuid.UUID
	Volume                int64
}

var (
	// ErrInsufficientLO indicates the requested volume exceeds the
	// product's aggregate outstanding delivery volume.
	ErrInsufficientLO = errors.New("purchases: insufficient outstanding delivery volume")
	// ErrNotFound indicates a missing purchase transaction.
	ErrNotFound = errors.New("purchases: not found")
)
