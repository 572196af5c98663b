package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountRef names a COA line by canonical name and category. The poster
// resolves it to a concrete row, creating the line on first use.
type AccountRef struct {
	Name     string
	Category COACategory
}

// LineInput describes one journal line of a posting request. Either Account
// names the COA canonically or COAID references an already-resolved row
// (used by reversals).
type LineInput struct {
	Account     AccountRef
	COAID       int64
	Debit       int64
	Credit      int64
	Description string
}

// PostingInput groups fields required to create a ledger transaction.
type PostingInput struct {
	GasStationID    uuid.UUID
	ProductID       *uuid.UUID
	Date            time.Time
	Description     string
	ReferenceNumber string
	Notes           string
	Type            TransactionType
	Status          ApprovalStatus
	PurchaseVolume  int64
	EvidenceURLs    []string
	CreatedBy       uuid.UUID
	SourceModule    string
	SourceID        uuid.UUID
	Lines           []LineInput
}

// Validate ensures the posting is balanced and complete. Amounts are exact
// integers so the balance check is equality, never a tolerance. Each line is
// single-sided on top of the aggregate balance: a both-sided line has no
// defined side to swap when the transaction is reversed, and every builder
// in this codebase emits single-sided lines anyway.
func (in PostingInput) Validate() error {
	if in.GasStationID == uuid.Nil {
		return errors.New("ledger: gas station required")
	}
	if in.SourceModule == "" {
		return errors.New("ledger: source module required")
	}
	if in.SourceID == uuid.Nil {
		return errors.New("ledger: source id required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit int64
	for idx, line := range in.Lines {
		if line.COAID == 0 && (line.Account.Name == "" || line.Account.Category == "") {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return ErrNegativeAmount
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return ErrUnbalanced
	}
	return nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	Memo          string
}
