package shifts

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Slot is the shift position within an operational day. Slots form a total
// order; combined with the date they sequence every shift at a station.
type Slot string

const (
	SlotMorning   Slot = "MORNING"
	SlotAfternoon Slot = "AFTERNOON"
	SlotNight     Slot = "NIGHT"
)

// Rank returns the slot's position in the daily order.
func (s Slot) Rank() int {
	switch s {
	case SlotMorning:
		return 1
	case SlotAfternoon:
		return 2
	case SlotNight:
		return 3
	}
	return 0
}

// Valid reports whether the slot is one of the known values.
func (s Slot) Valid() bool {
	return s.Rank() != 0
}

// ShiftStatus is the shift lifecycle state. Verification is orthogonal.
type ShiftStatus string

const (
	ShiftPending   ShiftStatus = "PENDING"
	ShiftStarted   ShiftStatus = "STARTED"
	ShiftCompleted ShiftStatus = "COMPLETED"
	ShiftCancelled ShiftStatus = "CANCELLED"
)

// OperatorShift is one operator's stint at a pump station. StationID is the
// pump island; GasStationID scopes the sequencing order.
type OperatorShift struct {
	ID           uuid.UUID
	StationID    uuid.UUID
	GasStationID uuid.UUID
	OperatorID   uuid.UUID
	Date         time.Time
	Slot         Slot
	Status       ShiftStatus
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReadingType distinguishes the totalizer snapshot at shift start and end.
type ReadingType string

const (
	ReadingOpen  ReadingType = "OPEN"
	ReadingClose ReadingType = "CLOSE"
)

// NozzleReading is a totalizer snapshot. The totalizer is monotonically
// non-decreasing over a nozzle's life; sales volume for a shift-nozzle pair
// is close - open - pumpTest and must be non-negative.
type NozzleReading struct {
	ID              int64
	OperatorShiftID uuid.UUID
	NozzleID        uuid.UUID
	Type            ReadingType
	Totalizer       int64
	PumpTest        int64
	PriceSnapshot   int64
	PhotoURLs       []string
	CreatedAt       time.Time
}

// DepositStatus is the deposit approval state.
type DepositStatus string

const (
	DepositPending  DepositStatus = "PENDING"
	DepositApproved DepositStatus = "APPROVED"
	DepositRejected DepositStatus = "REJECTED"
)

// TitipanAllocation is a third-party holding collected during the shift,
// recorded as a liability rather than revenue.
type TitipanAllocation struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// FreeFuelAllocation is fuel dispensed without payment, booked against the
// employee receivable account at approval.
type FreeFuelAllocation struct {
	ProductID uuid.UUID `json:"productId"`
	Liters    int64     `json:"liters"`
}

// Deposit is the cash handover for one shift. TotalAmount is computed from
// the shift's meter readings; the operator-declared figure is kept for
// comparison but never reaches the ledger.
type Deposit struct {
	ID                     uuid.UUID
	OperatorShiftID        uuid.UUID
	TotalAmount            int64
	OperatorDeclaredAmount int64
	AdminReceivedAmount    *int64
	Status                 DepositStatus
	Titipan                []TitipanAllocation
	FreeFuel               []FreeFuelAllocation
	PhotoURLs              []string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// OutOfSequenceError reports a verification or deposit attempted before an
// earlier shift was processed. It names the blocking shift so the caller
// can be directed there.
type OutOfSequenceError struct {
	BlockingShiftID uuid.UUID
	BlockingDate    time.Time
	BlockingSlot    Slot
	Reason          string
}

func (e *OutOfSequenceError) Error() string {
	return fmt.Sprintf("shifts: %s shift on %s must be processed first (%s)",
		e.BlockingSlot, e.BlockingDate.Format("2006-01-02"), e.Reason)
}

// Problem implements httpx.Problemer.
func (e *OutOfSequenceError) Problem() (int, string, string, string) {
	return http.StatusConflict, "Out Of Sequence", "OUT_OF_SEQUENCE", e.BlockingShiftID.String()
}

var (
	// ErrNotFound indicates a missing shift or deposit.
	ErrNotFound = errors.New("shifts: not found")
	// ErrAlreadyProcessed blocks re-deciding a non-PENDING deposit.
	ErrAlreadyProcessed = errors.New("shifts: deposit already processed")
	// ErrApprovedDepositExists blocks unverify while the shift's deposit
	// is APPROVED; the deposit journal must be reversed first.
	ErrApprovedDepositExists = errors.New("shifts: approved deposit exists, reverse it first")
	// ErrDepositExists blocks a second deposit while one is PENDING or
	// APPROVED.
	ErrDepositExists = errors.New("shifts: a deposit already exists for this shift")
	// ErrShiftVerified blocks deleting a verified shift.
	ErrShiftVerified = errors.New("shifts: shift is verified, unverify first")
	// ErrShiftNotCompleted blocks verification and deposits before the
	// shift is COMPLETED.
	ErrShiftNotCompleted = errors.New("shifts: shift is not completed")
	// ErrShiftNotVerified blocks deposit input on an unverified shift.
	ErrShiftNotVerified = errors.New("shifts: shift is not verified")
	// ErrTotalizerRegression indicates a totalizer below an earlier value:
	// a CLOSE below its OPEN, or an OPEN below the nozzle's last CLOSE.
	ErrTotalizerRegression = errors.New("shifts: totalizer below earlier reading")
	// ErrInvalidTransition indicates an illegal shift lifecycle move.
	ErrInvalidTransition = errors.New("shifts: invalid status transition")
)
