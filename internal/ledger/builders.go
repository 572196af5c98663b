package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transaction builders assemble balanced journals for each business event.
// They are pure: callers commit the result through a Poster inside their own
// atomic boundary.

// PurchaseParams describes a BBM purchase to be journaled.
type PurchaseParams struct {
	GasStationID    uuid.UUID
	ProductID       uuid.UUID
	ProductName     string
	VolumeLiters    int64
	UnitPrice       int64
	Payment         AccountRef
	Date            time.Time
	ReferenceNumber string
	Notes           string
	CreatedBy       uuid.UUID
	SourceID        uuid.UUID
	Privileged      bool
}

// BuildPurchase debits the product's LO account and credits the payment
// account at volume x purchase price. Privileged actors post directly as
// APPROVED; others wait for a manager.
func BuildPurchase(p PurchaseParams) (PostingInput, error) {
	if p.VolumeLiters <= 0 {
		return PostingInput{}, errors.New("ledger: purchase volume must be positive")
	}
	if p.UnitPrice <= 0 {
		return PostingInput{}, errors.New("ledger: purchase price must be positive")
	}
	amount := p.VolumeLiters * p.UnitPrice
	status := StatusPending
	if p.Privileged {
		status = StatusApproved
	}
	productID := p.ProductID
	return PostingInput{
		GasStationID:    p.GasStationID,
		ProductID:       &productID,
		Date:            p.Date,
		Description:     fmt.Sprintf("Pembelian %s %d L", p.ProductName, p.VolumeLiters),
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		Type:            TransactionTypePurchaseBBM,
		Status:          status,
		PurchaseVolume:  p.VolumeLiters,
		CreatedBy:       p.CreatedBy,
		SourceModule:    "purchases",
		SourceID:        p.SourceID,
		Lines: []LineInput{
			{Account: LOAccount(p.ProductName), Debit: amount},
			{Account: p.Payment, Credit: amount},
		},
	}, nil
}

// VarianceParams describes an approved tank reading's stock variance.
type VarianceParams struct {
	GasStationID   uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	ReadingID      uuid.UUID
	Date           time.Time
	VarianceLiters int64
	UnitPrice      int64
	ActorID        uuid.UUID
}

// BuildVariance converts a reading variance into a profit or loss journal.
// Variances below one whole liter are not posted; the second return value
// reports whether a journal was produced.
func BuildVariance(p VarianceParams) (PostingInput, bool) {
	liters := p.VarianceLiters
	if liters < 0 {
		liters = -liters
	}
	if liters < 1 {
		return PostingInput{}, false
	}
	amount := liters * p.UnitPrice
	var lines []LineInput
	var desc string
	if p.VarianceLiters > 0 {
		desc = fmt.Sprintf("Selisih lebih %s %d L", p.ProductName, liters)
		lines = []LineInput{
			{Account: InventoryAccount(p.ProductName), Debit: amount},
			{Account: COGSAccount(p.ProductName), Credit: amount},
		}
	} else {
		desc = fmt.Sprintf("Selisih kurang %s %d L", p.ProductName, liters)
		lines = []LineInput{
			{Account: ShrinkageAccount(p.ProductName), Debit: amount},
			{Account: InventoryAccount(p.ProductName), Credit: amount},
		}
	}
	productID := p.ProductID
	return PostingInput{
		GasStationID: p.GasStationID,
		ProductID:    &productID,
		Date:         p.Date,
		Description:  desc,
		Type:         TransactionTypeAdjustment,
		Status:       StatusApproved,
		CreatedBy:    p.ActorID,
		SourceModule: "tank_readings",
		SourceID:     p.ReadingID,
		Lines:        lines,
	}, true
}

// ProductAmount is a per-product volume valued at a unit price.
type ProductAmount struct {
	ProductID   uuid.UUID
	ProductName string
	Liters      int64
	UnitPrice   int64
}

// TitipanAllocation is a third-party holding collected during a shift.
type TitipanAllocation struct {
	Label  string
	Amount int64
}

// DepositApprovalParams carries the amounts computed from nozzle readings.
// Operator-declared totals never reach the builder.
type DepositApprovalParams struct {
	GasStationID uuid.UUID
	DepositID    uuid.UUID
	ShiftID      uuid.UUID
	Date         time.Time
	ApproverID   uuid.UUID
	Sales        []ProductAmount
	FreeFuel     []ProductAmount
	Titipan      []TitipanAllocation
}

// BuildDepositApproval synthesizes the sales, free-fuel and titipan entries
// for an approved shift deposit.
func BuildDepositApproval(p DepositApprovalParams) (PostingInput, error) {
	var lines []LineInput
	var salesTotal, freeTotal, titipanTotal int64
	for _, s := range p.Sales {
		if s.Liters < 0 {
			return PostingInput{}, errors.New("ledger: negative sales volume")
		}
		value := s.Liters * s.UnitPrice
		if value == 0 {
			continue
		}
		salesTotal += value
		lines = append(lines, LineInput{
			Account:     SalesAccount(s.ProductName),
			Credit:      value,
			Description: fmt.Sprintf("Penjualan %s %d L", s.ProductName, s.Liters),
		})
	}
	for _, f := range p.FreeFuel {
		if f.Liters < 0 {
			return PostingInput{}, errors.New("ledger: negative free fuel volume")
		}
		value := f.Liters * f.UnitPrice
		if value == 0 {
			continue
		}
		freeTotal += value
		lines = append(lines, LineInput{
			Account:     EmployeeReceivableAccount(),
			Debit:       value,
			Description: fmt.Sprintf("BBM gratis %s %d L", f.ProductName, f.Liters),
		})
	}
	for _, t := range p.Titipan {
		if t.Amount < 0 {
			return PostingInput{}, errors.New("ledger: negative titipan amount")
		}
		if t.Amount == 0 {
			continue
		}
		titipanTotal += t.Amount
		lines = append(lines, LineInput{
			Account:     TitipanAccount(),
			Credit:      t.Amount,
			Description: "Titipan " + t.Label,
		})
	}
	cashIn := salesTotal - freeTotal + titipanTotal
	if cashIn < 0 {
		return PostingInput{}, errors.New("ledger: free fuel exceeds shift sales")
	}
	if cashIn > 0 {
		lines = append([]LineInput{{Account: CashAccount(), Debit: cashIn, Description: "Setoran shift"}}, lines...)
	}
	if len(lines) < 2 {
		return PostingInput{}, ErrTooFewLines
	}
	return PostingInput{
		GasStationID: p.GasStationID,
		Date:         p.Date,
		Description:  "Setoran shift",
		Type:         TransactionTypeCash,
		Status:       StatusApproved,
		CreatedBy:    p.ApproverID,
		SourceModule: "deposits",
		SourceID:     p.DepositID,
		Lines:        lines,
	}, nil
}

// RevaluationParams describes a purchase-price change for a product.
type RevaluationParams struct {
	GasStationID uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	OldPrice     int64
	NewPrice     int64
	StockLiters  int64
	LOLiters     int64
	Date         time.Time
	ActorID      uuid.UUID
	SourceID     uuid.UUID
}

// BuildRevaluation revalues on-hand stock and outstanding LO volume at the
// new purchase price against equity. Returns false when nothing changes.
func BuildRevaluation(p RevaluationParams) (PostingInput, bool) {
	diff := p.NewPrice - p.OldPrice
	stockDelta := p.StockLiters * diff
	loDelta := p.LOLiters * diff
	total := stockDelta + loDelta
	if total == 0 && stockDelta == 0 && loDelta == 0 {
		return PostingInput{}, false
	}
	var lines []LineInput
	appendSigned := func(account AccountRef, delta int64, desc string) {
		if delta > 0 {
			lines = append(lines, LineInput{Account: account, Debit: delta, Description: desc})
		} else if delta < 0 {
			lines = append(lines, LineInput{Account: account, Credit: -delta, Description: desc})
		}
	}
	appendSigned(InventoryAccount(p.ProductName), stockDelta, "Revaluasi persediaan")
	appendSigned(LOAccount(p.ProductName), loDelta, "Revaluasi LO")
	appendSigned(EquityAccount(), -total, "Revaluasi harga beli")
	if len(lines) < 2 {
		return PostingInput{}, false
	}
	productID := p.ProductID
	return PostingInput{
		GasStationID: p.GasStationID,
		ProductID:    &productID,
		Date:         p.Date,
		Description:  fmt.Sprintf("Penyesuaian harga %s %d -> %d", p.ProductName, p.OldPrice, p.NewPrice),
		Type:         TransactionTypeAdjustment,
		Status:       StatusApproved,
		CreatedBy:    p.ActorID,
		SourceModule: "products",
		SourceID:     p.SourceID,
		Lines:        lines,
	}, true
}

// InitialStockParams describes a tank's opening stock or a correction of it.
type InitialStockParams struct {
	GasStationID uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	DeltaLiters  int64
	UnitPrice    int64
	Date         time.Time
	ActorID      uuid.UUID
	SourceID     uuid.UUID
}

// BuildInitialStock journals tank opening stock against equity. Returns
// false for a zero delta.
func BuildInitialStock(p InitialStockParams) (PostingInput, bool) {
	if p.DeltaLiters == 0 {
		return PostingInput{}, false
	}
	value := p.DeltaLiters * p.UnitPrice
	var lines []LineInput
	if value > 0 {
		lines = []LineInput{
			{Account: InventoryAccount(p.ProductName), Debit: value},
			{Account: EquityAccount(), Credit: value},
		}
	} else {
		lines = []LineInput{
			{Account: EquityAccount(), Debit: -value},
			{Account: InventoryAccount(p.ProductName), Credit: -value},
		}
	}
	productID := p.ProductID
	return PostingInput{
		GasStationID: p.GasStationID,
		ProductID:    &productID,
		Date:         p.Date,
		Description:  fmt.Sprintf("Stok awal %s %d L", p.ProductName, p.DeltaLiters),
		Type:         TransactionTypeAdjustment,
		Status:       StatusApproved,
		CreatedBy:    p.ActorID,
		SourceModule: "tanks",
		SourceID:     p.SourceID,
		Lines:        lines,
	}, true
}
