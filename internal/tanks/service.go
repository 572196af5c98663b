package tanks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/purchases"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

// StationPort resolves tank and station master data.
type StationPort interface {
	GetStation(ctx context.Context, id uuid.UUID) (stations.GasStation, error)
	GetTank(ctx context.Context, id uuid.UUID) (stations.Tank, error)
	GetProduct(ctx context.Context, id uuid.UUID) (stations.Product, error)
	ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]stations.Tank, error)
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

// Service runs the tank reconciliation cycle: dip readings with frozen
// variance snapshots and fuel unloads with FIFO purchase attribution.
type Service struct {
	repo      Repository
	stations  StationPort
	audit     AuditPort
	approvals ApprovalPort
	views     ViewPort
	now       func() time.Time
}

// NewService constructs the tanks service.
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

// GetReading returns one reading.
func (s *Service) GetReading(ctx context.Context, id uuid.UUID) (TankReading, error) {
	return s.repo.GetReading(ctx, id)
}

// ListReadings returns a tank's readings, newest first.
func (s *Service) ListReadings(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]TankReading, error) {
	return s.repo.ListReadings(ctx, tankID, limit, offset)
}

// ListUnloads returns a tank's unloads, newest first.
func (s *Service) ListUnloads(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]Unload, error) {
	return s.repo.ListUnloads(ctx, tankID, limit, offset)
}

// stockReader is the query surface the stock computation needs; both the
// plain repository and its transactional wrapper satisfy it.
type stockReader interface {
	LatestApprovedReadingBefore(ctx context.Context, tankID uuid.UUID, date time.Time) (*AnchorReading, error)
	SumMovements(ctx context.Context, tankID uuid.UUID, from, to time.Time) (Movements, error)
}

func (s *Service) computeStock(ctx context.Context, sr stockReader, tank stations.Tank, date time.Time) (opening, realtime int64, err error) {
	anchor, err := sr.LatestApprovedReadingBefore(ctx, tank.ID, date)
	if err != nil {
		return 0, 0, err
	}
	baseline := ResolveBaseline(date, anchor, tank.InitialStock)
	sinceBaseline, err := sr.SumMovements(ctx, tank.ID, baseline.Since, date)
	if err != nil {
		return 0, 0, err
	}
	today, err := sr.SumMovements(ctx, tank.ID, date, date.AddDate(0, 0, 1))
	if err != nil {
		return 0, 0, err
	}
	opening = OpeningStock(baseline, sinceBaseline)
	realtime = RealtimeStock(opening, today)
	return opening, realtime, nil
}

// TankStock reports a tank's computed opening and realtime stock for the
// current operational date.
func (s *Service) TankStock(ctx context.Context, tankID uuid.UUID) (opening, realtime int64, err error) {
	tank, err := s.stations.GetTank(ctx, tankID)
	if err != nil {
		return 0, 0, err
	}
	station, err := s.stations.GetStation(ctx, tank.GasStationID)
	if err != nil {
		return 0, 0, err
	}
	date := station.OperationalDate(s.now())
	return s.computeStock(ctx, s.repo, tank, date)
}

// StationStock sums realtime stock over every tank holding the product.
func (s *Service) StationStock(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error) {
	station, err := s.stations.GetStation(ctx, gasStationID)
	if err != nil {
		return 0, err
	}
	tanks, err := s.stations.ListTanks(ctx, gasStationID)
	if err != nil {
		return 0, err
	}
	date := station.OperationalDate(s.now())
	var total int64
	for _, tank := range tanks {
		if tank.ProductID != productID {
			continue
		}
		_, realtime, err := s.computeStock(ctx, s.repo, tank, date)
		if err != nil {
			return 0, err
		}
		total += realtime
	}
	return total, nil
}

// CreateReadingInput describes a new dip reading.
type CreateReadingInput struct {
	TankID     uuid.UUID
	LiterValue int64
	TakenAt    time.Time
	PhotoURLs  []string
	Actor      shared.AuthUser
}

// CreateReading freezes the stock snapshot and stores the reading as
// PENDING. The snapshot is computed inside the same atomic unit that
// enforces the one-reading-per-operational-date rule.
func (s *Service) CreateReading(ctx context.Context, input CreateReadingInput) (TankReading, error) {
	tank, err := s.stations.GetTank(ctx, input.TankID)
	if err != nil {
		return TankReading{}, err
	}
	if input.LiterValue < 0 || input.LiterValue > tank.Capacity {
		return TankReading{}, errors.New("tanks: liter value out of tank range")
	}
	station, err := s.stations.GetStation(ctx, tank.GasStationID)
	if err != nil {
		return TankReading{}, err
	}
	takenAt := input.TakenAt
	if takenAt.IsZero() {
		takenAt = s.now()
	}
	date := station.OperationalDate(takenAt)
	reading := TankReading{
		ID:              uuid.New(),
		TankID:          tank.ID,
		GasStationID:    tank.GasStationID,
		ProductID:       tank.ProductID,
		OperationalDate: date,
		LiterValue:      input.LiterValue,
		Status:          ReadingPending,
		LoaderID:        input.Actor.ID,
		PhotoURLs:       input.PhotoURLs,
		CreatedAt:       s.now().UTC(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockTankDate(ctx, tank.ID, date); err != nil {
			return err
		}
		exists, err := tx.HasActiveReading(ctx, tank.ID, date)
		if err != nil {
			return err
		}
		if exists {
			return ErrReadingExists
		}
		opening, realtime, err := s.computeStock(ctx, tx, tank, date)
		if err != nil {
			return err
		}
		reading.StockOpen = opening
		reading.StockRealtime = realtime
		reading.Variance = Variance(input.LiterValue, realtime)
		return tx.InsertReading(ctx, reading)
	})
	if err != nil {
		return TankReading{}, err
	}
	s.recordApproval(ctx, "tank_readings", reading.ID, input.Actor.ID, shared.ApprovalSubmit, "")
	s.recordAudit(ctx, input.Actor.ID, "reading.create", reading.ID.String(), map[string]any{
		"liter_value": input.LiterValue,
		"variance":    reading.Variance,
	})
	s.invalidate(ctx, tank.GasStationID)
	return reading, nil
}

// ApproveReading marks the reading APPROVED and posts the frozen variance
// as a profit or loss journal when it reaches one whole liter.
func (s *Service) ApproveReading(ctx context.Context, id uuid.UUID, approver shared.AuthUser) (TankReading, error) {
	var approved TankReading
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reading, err := tx.GetReadingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if reading.Status != ReadingPending {
			return ErrAlreadyProcessed
		}
		if err := tx.SetReadingStatus(ctx, id, ReadingApproved, approver.ID); err != nil {
			return err
		}
		product, err := s.stations.GetProduct(ctx, reading.ProductID)
		if err != nil {
			return err
		}
		posting, ok := ledger.BuildVariance(ledger.VarianceParams{
			GasStationID:   reading.GasStationID,
			ProductID:      reading.ProductID,
			ProductName:    product.Name,
			ReadingID:      reading.ID,
			Date:           reading.OperationalDate,
			VarianceLiters: reading.Variance,
			UnitPrice:      product.PurchasePrice,
			ActorID:        approver.ID,
		})
		if ok {
			posting.EvidenceURLs = reading.PhotoURLs
			if _, err := tx.PostJournal(ctx, posting); err != nil {
				return err
			}
		}
		approved = reading
		approved.Status = ReadingApproved
		approved.ApproverID = &approver.ID
		return nil
	})
	if err != nil {
		return TankReading{}, err
	}
	s.recordApproval(ctx, "tank_readings", id, approver.ID, shared.ApprovalApprove, "")
	s.recordAudit(ctx, approver.ID, "reading.approve", id.String(), nil)
	s.invalidate(ctx, approved.GasStationID)
	return approved, nil
}

// RejectReading marks the reading REJECTED; no journal is posted and
// subsequent stock computations ignore it.
func (s *Service) RejectReading(ctx context.Context, id uuid.UUID, approver shared.AuthUser, note string) (TankReading, error) {
	var rejected TankReading
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reading, err := tx.GetReadingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if reading.Status != ReadingPending {
			return ErrAlreadyProcessed
		}
		if err := tx.SetReadingStatus(ctx, id, ReadingRejected, approver.ID); err != nil {
			return err
		}
		rejected = reading
		rejected.Status = ReadingRejected
		rejected.ApproverID = &approver.ID
		return nil
	})
	if err != nil {
		return TankReading{}, err
	}
	s.recordApproval(ctx, "tank_readings", id, approver.ID, shared.ApprovalReject, note)
	s.recordAudit(ctx, approver.ID, "reading.reject", id.String(), nil)
	s.invalidate(ctx, rejected.GasStationID)
	return rejected, nil
}

// CreateUnloadInput describes a fuel delivery awaiting approval.
type CreateUnloadInput struct {
	TankID          uuid.UUID
	DeliveredVolume int64
	LiterAmount     int64
	UnloadedAt      time.Time
	PhotoURLs       []string
	Actor           shared.AuthUser
}

// CreateUnload records a PENDING delivery. The claimed volume reserves LO
// immediately; capacity and LO headroom are checked under the per-product
// lock and re-checked at approval.
func (s *Service) CreateUnload(ctx context.Context, input CreateUnloadInput) (Unload, error) {
	if input.DeliveredVolume <= 0 || input.LiterAmount <= 0 {
		return Unload{}, errors.New("tanks: volumes must be positive")
	}
	if input.LiterAmount > input.DeliveredVolume {
		return Unload{}, ErrDeliveredExceeded
	}
	tank, err := s.stations.GetTank(ctx, input.TankID)
	if err != nil {
		return Unload{}, err
	}
	station, err := s.stations.GetStation(ctx, tank.GasStationID)
	if err != nil {
		return Unload{}, err
	}
	unloadedAt := input.UnloadedAt
	if unloadedAt.IsZero() {
		unloadedAt = s.now()
	}
	unload := Unload{
		ID:              uuid.New(),
		TankID:          tank.ID,
		GasStationID:    tank.GasStationID,
		ProductID:       tank.ProductID,
		DeliveredVolume: input.DeliveredVolume,
		LiterAmount:     input.LiterAmount,
		OperationalDate: station.OperationalDate(unloadedAt),
		Status:          UnloadPending,
		CreatedByID:     input.Actor.ID,
		PhotoURLs:       input.PhotoURLs,
		UnloadedAt:      unloadedAt,
		CreatedAt:       s.now().UTC(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockProductLO(ctx, tank.GasStationID, tank.ProductID); err != nil {
			return err
		}
		if err := s.checkLOHeadroom(ctx, tx, tank, input.DeliveredVolume); err != nil {
			return err
		}
		if err := s.checkCapacity(ctx, tx, tank, unload.OperationalDate, input.LiterAmount); err != nil {
			return err
		}
		return tx.InsertUnload(ctx, unload)
	})
	if err != nil {
		return Unload{}, err
	}
	s.recordApproval(ctx, "unloads", unload.ID, input.Actor.ID, shared.ApprovalSubmit, "")
	s.recordAudit(ctx, input.Actor.ID, "unload.create", unload.ID.String(), map[string]any{
		"delivered_volume": input.DeliveredVolume,
		"liter_amount":     input.LiterAmount,
	})
	s.invalidate(ctx, tank.GasStationID)
	return unload, nil
}

// ApproveUnload attributes the delivered volume to outstanding purchases
// FIFO and moves the unload to APPROVED. The per-product lock closes the
// race between two approvals drawing on the same remaining LO.
func (s *Service) ApproveUnload(ctx context.Context, id uuid.UUID, approver shared.AuthUser) (Unload, error) {
	var approved Unload
	var stationID uuid.UUID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unload, err := tx.GetUnloadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if unload.Status != UnloadPending {
			return ErrAlreadyProcessed
		}
		stationID = unload.GasStationID
		if err := tx.LockProductLO(ctx, unload.GasStationID, unload.ProductID); err != nil {
			return err
		}
		tank, err := s.stations.GetTank(ctx, unload.TankID)
		if err != nil {
			return err
		}
		if err := s.checkCapacity(ctx, tx, tank, unload.OperationalDate, unload.LiterAmount); err != nil {
			return err
		}
		outstanding, err := tx.OutstandingForUpdate(ctx, unload.GasStationID, unload.ProductID)
		if err != nil {
			return err
		}
		allocations, err := purchases.AllocateFIFO(outstanding, unload.DeliveredVolume)
		if err != nil {
			return err
		}
		if err := tx.ApplyAllocations(ctx, allocations); err != nil {
			return err
		}
		if err := tx.InsertAllocations(ctx, id, allocations); err != nil {
			return err
		}
		primary := allocations[0].PurchaseTransactionID
		if err := tx.SetUnloadStatus(ctx, id, UnloadApproved, approver.ID, &primary); err != nil {
			return err
		}
		approved = unload
		approved.Status = UnloadApproved
		approved.ApproverID = &approver.ID
		approved.PurchaseTransactionID = &primary
		return nil
	})
	if err != nil {
		return Unload{}, err
	}
	s.recordApproval(ctx, "unloads", id, approver.ID, shared.ApprovalApprove, "")
	s.recordAudit(ctx, approver.ID, "unload.approve", id.String(), nil)
	s.invalidate(ctx, stationID)
	return approved, nil
}

// RejectUnload releases the LO reservation by moving the unload to
// REJECTED.
func (s *Service) RejectUnload(ctx context.Context, id uuid.UUID, approver shared.AuthUser, note string) (Unload, error) {
	var rejected Unload
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		unload, err := tx.GetUnloadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if unload.Status != UnloadPending {
			return ErrAlreadyProcessed
		}
		if err := tx.SetUnloadStatus(ctx, id, UnloadRejected, approver.ID, nil); err != nil {
			return err
		}
		rejected = unload
		rejected.Status = UnloadRejected
		rejected.ApproverID = &approver.ID
		return nil
	})
	if err != nil {
		return Unload{}, err
	}
	s.recordApproval(ctx, "unloads", id, approver.ID, shared.ApprovalReject, note)
	s.recordAudit(ctx, approver.ID, "unload.reject", id.String(), nil)
	s.invalidate(ctx, rejected.GasStationID)
	return rejected, nil
}

func (s *Service) checkCapacity(ctx context.Context, tx TxRepository, tank stations.Tank, date time.Time, incoming int64) error {
	_, realtime, err := s.computeStock(ctx, tx, tank, date)
	if err != nil {
		return err
	}
	if realtime+incoming > tank.Capacity {
		return &CapacityExceededError{
			TankID:   tank.ID,
			Capacity: tank.Capacity,
			Current:  realtime,
			Incoming: incoming,
		}
	}
	return nil
}

func (s *Service) checkLOHeadroom(ctx context.Context, tx TxRepository, tank stations.Tank, delivered int64) error {
	outstanding, err := tx.OutstandingForUpdate(ctx, tank.GasStationID, tank.ProductID)
	if err != nil {
		return err
	}
	var remaining int64
	for _, o := range outstanding {
		remaining += o.Remaining()
	}
	reserved, err := tx.PendingReservedVolume(ctx, tank.GasStationID, tank.ProductID)
	if err != nil {
		return err
	}
	if delivered > remaining-reserved {
		return purchases.ErrInsufficientLO
	}
	return nil
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
		Entity:   "tanks",
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
