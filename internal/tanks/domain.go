package tanks

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ReadingStatus is the approval state of a tank dip reading.
type ReadingStatus string

const (
	ReadingPending  ReadingStatus = "PENDING"
	ReadingApproved ReadingStatus = "APPROVED"
	ReadingRejected ReadingStatus = "REJECTED"
)

// TankReading is a physical dip measurement. StockOpen, StockRealtime and
// Variance are computed once at creation and frozen, so a later approval
// never recomputes against a moved baseline. At most one non-REJECTED
// reading exists per (tank, operational date).
type TankReading struct {
	ID              uuid.UUID
	TankID          uuid.UUID
	GasStationID    uuid.UUID
	ProductID       uuid.UUID
	OperationalDate time.Time
	LiterValue      int64
	StockOpen       int64
	StockRealtime   int64
	Variance        int64
	Status          ReadingStatus
	LoaderID        uuid.UUID
	ApproverID      *uuid.UUID
	PhotoURLs       []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UnloadStatus is the approval state of a fuel delivery into a tank.
type UnloadStatus string

const (
	UnloadPending  UnloadStatus = "PENDING"
	UnloadApproved UnloadStatus = "APPROVED"
	UnloadRejected UnloadStatus = "REJECTED"
)

// Unload is a fuel delivery. DeliveredVolume is the volume the supplier
// claims delivered and draws down LO; LiterAmount is what was actually
// received into the tank and must not exceed DeliveredVolume.
type Unload struct {
	ID                    uuid.UUID
	TankID                uuid.UUID
	GasStationID          uuid.UUID
	ProductID             uuid.UUID
	PurchaseTransactionID *uuid.UUID
	DeliveredVolume       int64
	LiterAmount           int64
	OperationalDate       time.Time
	Status                UnloadStatus
	CreatedByID           uuid.UUID
	ApproverID            *uuid.UUID
	PhotoURLs             []string
	UnloadedAt            time.Time
	CreatedAt             time.Time
}

// CapacityExceededError reports an unload that would overflow the tank.
type CapacityExceededError struct {
	TankID   uuid.UUID
	Capacity int64
	Current  int64
	Incoming int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("tanks: unload of %d L would exceed capacity %d L (current stock %d L)",
		e.Incoming, e.Capacity, e.Current)
}

// Problem implements httpx.Problemer.
func (e *CapacityExceededError) Problem() (int, string, string, string) {
	return http.StatusConflict, "Capacity Exceeded", "CAPACITY_EXCEEDED", e.TankID.String()
}

var (
	// ErrNotFound indicates a missing reading or unload.
	ErrNotFound = errors.New("tanks: not found")
	// ErrReadingExists blocks a second non-REJECTED reading for the same
	// tank and operational date.
	ErrReadingExists = errors.New("tanks: a reading already exists for this operational date")
	// ErrAlreadyProcessed blocks re-deciding a non-PENDING record.
	ErrAlreadyProcessed = errors.New("tanks: record already processed")
	// ErrDeliveredExceeded indicates received volume above the claimed
	// delivered volume.
	ErrDeliveredExceeded = errors.New("tanks: received volume exceeds delivered volume")
)
