package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates the business event classes posted to the ledger.
type TransactionType string

const (
	TransactionTypeCash        TransactionType = "CASH"
	TransactionTypeAdjustment  TransactionType = "ADJUSTMENT"
	TransactionTypePurchaseBBM TransactionType = "PURCHASE_BBM"
)

// ApprovalStatus enumerates transaction lifecycle values.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// COACategory classifies a chart-of-account line.
type COACategory string

const (
	CategoryAsset     COACategory = "ASSET"
	CategoryLiability COACategory = "LIABILITY"
	CategoryEquity    COACategory = "EQUITY"
	CategoryRevenue   COACategory = "REVENUE"
	CategoryExpense   COACategory = "EXPENSE"
	CategoryCOGS      COACategory = "COGS"
)

// COA is a chart-of-account line, unique per (gas station, name) and created
// lazily on first use.
type COA struct {
	ID           int64
	GasStationID uuid.UUID
	Name         string
	Category     COACategory
	Active       bool
}

// Transaction is an append-only ledger record owning a balanced journal.
// Money is stored as int64 minor currency units, volumes as whole liters.
type Transaction struct {
	ID              uuid.UUID
	GasStationID    uuid.UUID
	ProductID       *uuid.UUID
	Date            time.Time
	Description     string
	ReferenceNumber string
	Notes           string
	Type            TransactionType
	ApprovalStatus  ApprovalStatus
	ApproverID      *uuid.UUID
	PurchaseVolume  int64
	DeliveredVolume int64
	EvidenceURLs    []string
	CreatedByID     uuid.UUID
	SourceModule    string
	SourceID        uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Entries         []JournalEntry
}

// JournalEntry stores one debit or credit amount against a COA line.
type JournalEntry struct {
	ID            int64
	TransactionID uuid.UUID
	COAID         int64
	Debit         int64
	Credit        int64
	Description   string
}

var (
	// ErrUnbalanced indicates journal debits and credits differ.
	ErrUnbalanced = errors.New("ledger: journal debits and credits do not balance")
	// ErrTooFewLines indicates a journal with fewer than two entries.
	ErrTooFewLines = errors.New("ledger: journal requires at least two entries")
	// ErrNegativeAmount indicates a negative debit or credit.
	ErrNegativeAmount = errors.New("ledger: amounts must be non-negative")
	// ErrAlreadyProcessed indicates an approve/reject on a non-PENDING transaction.
	ErrAlreadyProcessed = errors.New("ledger: transaction already processed")
	// ErrSourceConflict indicates the source event already produced a journal.
	ErrSourceConflict = errors.New("ledger: source already posted")
	// ErrNotFound indicates a missing transaction.
	ErrNotFound = errors.New("ledger: transaction not found")
	// ErrNotApproved indicates a reversal of a non-APPROVED transaction.
	ErrNotApproved = errors.New("ledger: only approved transactions can be reversed")
)
