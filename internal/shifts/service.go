package shifts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

// StationPort resolves nozzle and product master data.
type StationPort interface {
	GetNozzle(ctx context.Context, id uuid.UUID) (stations.Nozzle, error)
	GetProduct(ctx context.Context, id uuid.UUID) (stations.Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort persists approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// ViewPort signals station data changes after a successful commit.
type ViewPort interface {
	Invalidate(ctx context.Context, gasStationID uuid.UUID)
}

// Service runs the shift cycle: totalizer readings, strict-order
// verification and deposits, and the deposit approval journal.
type Service struct {
	repo      Repository
	stations  StationPort
	audit     AuditPort
	approvals ApprovalPort
	views     ViewPort
	onBlocked func()
	now       func() time.Time
}

// NewService constructs the shifts service.
func NewService(repo Repository, stationPort StationPort, audit AuditPort, approvals ApprovalPort, views ViewPort) *Service {
	return &Service{
		repo:      repo,
		stations:  stationPort,
		audit:     audit,
		approvals: approvals,
		views:     views,
		now:       time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OnSequenceBlocked registers a hook invoked whenever a verify or deposit
// is rejected for ordering. Used to feed metrics.
func (s *Service) OnSequenceBlocked(fn func()) {
	s.onBlocked = fn
}

// noteSequenceBlocked fires the hook for out-of-order rejections only.
func (s *Service) noteSequenceBlocked(err error) error {
	var seqErr *OutOfSequenceError
	if errors.As(err, &seqErr) && s.onBlocked != nil {
		s.onBlocked()
	}
	return err
}

// GetShift returns one shift.
func (s *Service) GetShift(ctx context.Context, id uuid.UUID) (OperatorShift, error) {
	return s.repo.GetShift(ctx, id)
}

// ListShifts returns a station's shifts for one operational date.
func (s *Service) ListShifts(ctx context.Context, gasStationID uuid.UUID, date time.Time) ([]OperatorShift, error) {
	return s.repo.ListShifts(ctx, gasStationID, date)
}

// GetDeposit returns the shift's deposit.
func (s *Service) GetDeposit(ctx context.Context, shiftID uuid.UUID) (Deposit, error) {
	return s.repo.GetDepositByShift(ctx, shiftID)
}

// ListNozzleReadings returns the shift's totalizer snapshots.
func (s *Service) ListNozzleReadings(ctx context.Context, shiftID uuid.UUID) ([]NozzleReading, error) {
	return s.repo.ListNozzleReadings(ctx, shiftID)
}

// CreateShiftInput describes a new planned shift.
type CreateShiftInput struct {
	StationID    uuid.UUID
	GasStationID uuid.UUID
	OperatorID   uuid.UUID
	Date         time.Time
	Slot         Slot
	Actor        shared.AuthUser
}

// CreateShift plans a shift in PENDING state.
func (s *Service) CreateShift(ctx context.Context, input CreateShiftInput) (OperatorShift, error) {
	if !input.Slot.Valid() {
		return OperatorShift{}, errors.New("shifts: unknown slot")
	}
	shift := OperatorShift{
		ID:           uuid.New(),
		StationID:    input.StationID,
		GasStationID: input.GasStationID,
		OperatorID:   input.OperatorID,
		Date:         input.Date,
		Slot:         input.Slot,
		Status:       ShiftPending,
		CreatedAt:    s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertShift(ctx, shift)
	})
	if err != nil {
		return OperatorShift{}, err
	}
	s.recordAudit(ctx, input.Actor.ID, "shift.create", shift.ID.String(), map[string]any{
		"date": input.Date.Format("2006-01-02"),
		"slot": string(input.Slot),
	})
	return shift, nil
}

// NozzleReadingInput is one totalizer snapshot supplied at shift start or
// completion.
type NozzleReadingInput struct {
	NozzleID  uuid.UUID
	Totalizer int64
	PumpTest  int64
	PhotoURLs []string
}

// StartShift moves the shift to STARTED and records the OPEN totalizers
// with the product's sale price frozen as the snapshot. Totalizers never
// decrease over a nozzle's life, so an OPEN below the nozzle's last
// recorded CLOSE is rejected.
func (s *Service) StartShift(ctx context.Context, shiftID uuid.UUID, readings []NozzleReadingInput, actor shared.AuthUser) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != ShiftPending {
			return ErrInvalidTransition
		}
		if err := tx.SetShiftStatus(ctx, shiftID, ShiftStarted); err != nil {
			return err
		}
		for _, in := range readings {
			if in.Totalizer < 0 {
				return errors.New("shifts: totalizer must be non-negative")
			}
			lastClose, err := tx.LastCloseTotalizer(ctx, in.NozzleID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if err == nil && in.Totalizer < lastClose {
				return ErrTotalizerRegression
			}
			nozzle, err := s.stations.GetNozzle(ctx, in.NozzleID)
			if err != nil {
				return err
			}
			product, err := s.stations.GetProduct(ctx, nozzle.ProductID)
			if err != nil {
				return err
			}
			err = tx.InsertNozzleReading(ctx, NozzleReading{
				OperatorShiftID: shiftID,
				NozzleID:        in.NozzleID,
				Type:            ReadingOpen,
				Totalizer:       in.Totalizer,
				PriceSnapshot:   product.SalePrice,
				PhotoURLs:       in.PhotoURLs,
				CreatedAt:       s.now().UTC(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "shift.start", shiftID.String(), nil)
	return nil
}

// CompleteShift records the CLOSE totalizers and moves the shift to
// COMPLETED. A CLOSE below its OPEN, or a pump test larger than the
// dispensed volume, aborts the whole unit.
func (s *Service) CompleteShift(ctx context.Context, shiftID uuid.UUID, readings []NozzleReadingInput, actor shared.AuthUser) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if shift.Status != ShiftStarted {
			return ErrInvalidTransition
		}
		for _, in := range readings {
			open, err := tx.GetNozzleReading(ctx, shiftID, in.NozzleID, ReadingOpen)
			if err != nil {
				return err
			}
			if in.Totalizer < open.Totalizer {
				return ErrTotalizerRegression
			}
			if in.PumpTest < 0 || in.PumpTest > in.Totalizer-open.Totalizer {
				return errors.New("shifts: pump test exceeds dispensed volume")
			}
			err = tx.InsertNozzleReading(ctx, NozzleReading{
				OperatorShiftID: shiftID,
				NozzleID:        in.NozzleID,
				Type:            ReadingClose,
				Totalizer:       in.Totalizer,
				PumpTest:        in.PumpTest,
				PriceSnapshot:   open.PriceSnapshot,
				PhotoURLs:       in.PhotoURLs,
				CreatedAt:       s.now().UTC(),
			})
			if err != nil {
				return err
			}
		}
		return tx.SetShiftStatus(ctx, shiftID, ShiftCompleted)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "shift.complete", shiftID.String(), nil)
	return nil
}

// Verify attests the shift's meter readings. Every earlier COMPLETED shift
// at the station must already be verified; no ledger effect.
func (s *Service) Verify(ctx context.Context, shiftID uuid.UUID, actor shared.AuthUser) error {
	var stationID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		stationID = shift.GasStationID
		if err := tx.LockStation(ctx, shift.GasStationID); err != nil {
			return err
		}
		if shift.Status != ShiftCompleted {
			return ErrShiftNotCompleted
		}
		if shift.IsVerified {
			return nil
		}
		all, err := tx.ListSequenced(ctx, shift.GasStationID)
		if err != nil {
			return err
		}
		if err := CanVerify(sequencedOf(shift, nil), all); err != nil {
			return s.noteSequenceBlocked(err)
		}
		return tx.SetVerified(ctx, shiftID, true)
	})
	if err != nil {
		return err
	}
	s.recordApproval(ctx, "operator_shifts", shiftID, actor.ID, shared.ApprovalVerify, "")
	s.recordAudit(ctx, actor.ID, "shift.verify", shiftID.String(), nil)
	s.invalidate(ctx, stationID)
	return nil
}

// Unverify rolls back a verification. It deletes any non-APPROVED deposit
// and, to preserve the total order, also clears verification on every
// later shift at the station in the same atomic unit. An APPROVED deposit
// on the target or any later shift blocks the whole rollback until its
// journal is reversed.
func (s *Service) Unverify(ctx context.Context, shiftID uuid.UUID, actor shared.AuthUser) error {
	var stationID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		stationID = shift.GasStationID
		if err := tx.LockStation(ctx, shift.GasStationID); err != nil {
			return err
		}
		deposit, err := tx.GetDepositForUpdate(ctx, shiftID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && deposit.Status == DepositApproved {
			return ErrApprovedDepositExists
		}
		all, err := tx.ListSequenced(ctx, shift.GasStationID)
		if err != nil {
			return err
		}
		target := sequencedOf(shift, nil)
		if blocker := LaterApprovedDeposit(target, all); blocker != nil {
			return ErrApprovedDepositExists
		}
		if err := tx.DeleteNonApprovedDeposit(ctx, shiftID); err != nil {
			return err
		}
		if err := tx.SetVerified(ctx, shiftID, false); err != nil {
			return err
		}
		for _, laterID := range LaterVerified(target, all) {
			if err := tx.DeleteNonApprovedDeposit(ctx, laterID); err != nil {
				return err
			}
			if err := tx.SetVerified(ctx, laterID, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordApproval(ctx, "operator_shifts", shiftID, actor.ID, shared.ApprovalUnverify, "")
	s.recordAudit(ctx, actor.ID, "shift.unverify", shiftID.String(), nil)
	s.invalidate(ctx, stationID)
	return nil
}

// DeleteShift removes an unverified shift with its readings and deposit in
// one atomic unit.
func (s *Service) DeleteShift(ctx context.Context, shiftID uuid.UUID, actor shared.AuthUser) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if shift.IsVerified {
			return ErrShiftVerified
		}
		deposit, err := tx.GetDepositForUpdate(ctx, shiftID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && deposit.Status == DepositApproved {
			return ErrApprovedDepositExists
		}
		return tx.DeleteShiftCascade(ctx, shiftID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "shift.delete", shiftID.String(), nil)
	return nil
}

// InputDepositInput describes an operator's cash handover.
type InputDepositInput struct {
	ShiftID        uuid.UUID
	DeclaredAmount int64
	Titipan        []TitipanAllocation
	FreeFuel       []FreeFuelAllocation
	PhotoURLs      []string
	Actor          shared.AuthUser
}

// InputDeposit stores a PENDING deposit. The expected total is computed
// from the shift's meter readings; the operator-declared amount is kept
// only for comparison. A REJECTED deposit may be replaced, a PENDING or
// APPROVED one may not.
func (s *Service) InputDeposit(ctx context.Context, input InputDepositInput) (Deposit, error) {
	if input.DeclaredAmount < 0 {
		return Deposit{}, errors.New("shifts: declared amount must be non-negative")
	}
	deposit := Deposit{
		ID:                     uuid.New(),
		OperatorShiftID:        input.ShiftID,
		OperatorDeclaredAmount: input.DeclaredAmount,
		Status:                 DepositPending,
		Titipan:                input.Titipan,
		FreeFuel:               input.FreeFuel,
		PhotoURLs:              input.PhotoURLs,
		CreatedAt:              s.now().UTC(),
	}
	var stationID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, input.ShiftID)
		if err != nil {
			return err
		}
		stationID = shift.GasStationID
		if err := tx.LockStation(ctx, shift.GasStationID); err != nil {
			return err
		}
		if shift.Status != ShiftCompleted {
			return ErrShiftNotCompleted
		}
		if !shift.IsVerified {
			return ErrShiftNotVerified
		}
		existing, err := tx.GetDepositForUpdate(ctx, input.ShiftID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil {
			if existing.Status != DepositRejected {
				return ErrDepositExists
			}
			if err := tx.DeleteNonApprovedDeposit(ctx, input.ShiftID); err != nil {
				return err
			}
		}
		all, err := tx.ListSequenced(ctx, shift.GasStationID)
		if err != nil {
			return err
		}
		if err := CanDeposit(sequencedOf(shift, nil), all); err != nil {
			return s.noteSequenceBlocked(err)
		}
		expected, err := s.expectedCash(ctx, tx, input.ShiftID, input.FreeFuel, input.Titipan)
		if err != nil {
			return err
		}
		deposit.TotalAmount = expected
		return tx.InsertDeposit(ctx, deposit)
	})
	if err != nil {
		return Deposit{}, err
	}
	s.recordApproval(ctx, "deposits", deposit.ID, input.Actor.ID, shared.ApprovalSubmit, "")
	s.recordAudit(ctx, input.Actor.ID, "deposit.input", deposit.ID.String(), map[string]any{
		"declared": input.DeclaredAmount,
		"expected": deposit.TotalAmount,
	})
	s.invalidate(ctx, stationID)
	return deposit, nil
}

// ApproveDeposit posts the shift's sales journal and marks the deposit
// APPROVED. Every amount is synthesized from CLOSE-OPEN-pumpTest at the
// frozen price snapshots, never from the operator-declared total.
func (s *Service) ApproveDeposit(ctx context.Context, shiftID uuid.UUID, adminReceived int64, actor shared.AuthUser) (Deposit, error) {
	if adminReceived < 0 {
		return Deposit{}, errors.New("shifts: received amount must be non-negative")
	}
	var approved Deposit
	var stationID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		stationID = shift.GasStationID
		if err := tx.LockStation(ctx, shift.GasStationID); err != nil {
			return err
		}
		if !shift.IsVerified {
			return ErrShiftNotVerified
		}
		deposit, err := tx.GetDepositForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if deposit.Status != DepositPending {
			return ErrAlreadyProcessed
		}
		sales, err := tx.SalesForShift(ctx, shiftID)
		if err != nil {
			return err
		}
		params := ledger.DepositApprovalParams{
			GasStationID: shift.GasStationID,
			DepositID:    deposit.ID,
			ShiftID:      shiftID,
			Date:         shift.Date,
			ApproverID:   actor.ID,
		}
		for _, line := range sales {
			params.Sales = append(params.Sales, ledger.ProductAmount{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Liters:      line.Liters,
				UnitPrice:   line.PriceSnapshot,
			})
		}
		for _, free := range deposit.FreeFuel {
			price, name, err := s.freeFuelPrice(ctx, sales, free.ProductID)
			if err != nil {
				return err
			}
			params.FreeFuel = append(params.FreeFuel, ledger.ProductAmount{
				ProductID:   free.ProductID,
				ProductName: name,
				Liters:      free.Liters,
				UnitPrice:   price,
			})
		}
		for _, t := range deposit.Titipan {
			params.Titipan = append(params.Titipan, ledger.TitipanAllocation{
				Label:  t.Label,
				Amount: t.Amount,
			})
		}
		posting, err := ledger.BuildDepositApproval(params)
		if err != nil {
			return err
		}
		posting.EvidenceURLs = deposit.PhotoURLs
		if _, err := tx.PostJournal(ctx, posting); err != nil {
			return err
		}
		received := adminReceived
		if err := tx.SetDepositStatus(ctx, deposit.ID, DepositApproved, &received); err != nil {
			return err
		}
		approved = deposit
		approved.Status = DepositApproved
		approved.AdminReceivedAmount = &received
		return nil
	})
	if err != nil {
		return Deposit{}, err
	}
	s.recordApproval(ctx, "deposits", approved.ID, actor.ID, shared.ApprovalApprove, "")
	s.recordAudit(ctx, actor.ID, "deposit.approve", approved.ID.String(), nil)
	s.invalidate(ctx, stationID)
	return approved, nil
}

// RejectDeposit marks the deposit REJECTED; the operator may re-input.
func (s *Service) RejectDeposit(ctx context.Context, shiftID uuid.UUID, note string, actor shared.AuthUser) (Deposit, error) {
	var rejected Deposit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		deposit, err := tx.GetDepositForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if deposit.Status != DepositPending {
			return ErrAlreadyProcessed
		}
		if err := tx.SetDepositStatus(ctx, deposit.ID, DepositRejected, nil); err != nil {
			return err
		}
		rejected = deposit
		rejected.Status = DepositRejected
		return nil
	})
	if err != nil {
		return Deposit{}, err
	}
	s.recordApproval(ctx, "deposits", rejected.ID, actor.ID, shared.ApprovalReject, note)
	s.recordAudit(ctx, actor.ID, "deposit.reject", rejected.ID.String(), nil)
	return rejected, nil
}

// expectedCash mirrors the deposit approval arithmetic: sales minus free
// fuel plus titipan.
func (s *Service) expectedCash(ctx context.Context, tx TxRepository, shiftID uuid.UUID, freeFuel []FreeFuelAllocation, titipan []TitipanAllocation) (int64, error) {
	sales, err := tx.SalesForShift(ctx, shiftID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, line := range sales {
		total += line.Liters * line.PriceSnapshot
	}
	for _, free := range freeFuel {
		price, _, err := s.freeFuelPrice(ctx, sales, free.ProductID)
		if err != nil {
			return 0, err
		}
		total -= free.Liters * price
	}
	for _, t := range titipan {
		total += t.Amount
	}
	if total < 0 {
		return 0, errors.New("shifts: free fuel exceeds shift sales")
	}
	return total, nil
}

func (s *Service) freeFuelPrice(ctx context.Context, sales []SaleLine, productID uuid.UUID) (int64, string, error) {
	for _, line := range sales {
		if line.ProductID == productID {
			return line.PriceSnapshot, line.ProductName, nil
		}
	}
	product, err := s.stations.GetProduct(ctx, productID)
	if err != nil {
		return 0, "", err
	}
	return product.SalePrice, product.Name, nil
}

func sequencedOf(shift OperatorShift, depositStatus *DepositStatus) SequencedShift {
	return SequencedShift{
		ID:            shift.ID,
		Date:          shift.Date,
		Slot:          shift.Slot,
		Status:        shift.Status,
		IsVerified:    shift.IsVerified,
		DepositStatus: depositStatus,
	}
}

func (s *Service) recordApproval(ctx context.Context, module string, refID, actorID uuid.UUID, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  module,
		RefID:   refID,
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "shifts",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) invalidate(ctx context.Context, gasStationID uuid.UUID) {
	if s.views == nil {
		return
	}
	s.views.Invalidate(ctx, gasStationID)
}
