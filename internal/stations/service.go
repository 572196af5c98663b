package stations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// LevelsPort reads current stock and outstanding LO volume per product,
// needed to value a purchase-price change.
type LevelsPort interface {
	StationStock(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error)
	RemainingLO(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages station master data and the journaled mutations on it.
type Service struct {
	repo   Repository
	levels LevelsPort
	audit  AuditPort
	now    func() time.Time
}

// NewService constructs the stations service.
func NewService(repo Repository, levels LevelsPort, audit AuditPort) *Service {
	return &Service{repo: repo, levels: levels, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetStation returns one gas station.
func (s *Service) GetStation(ctx context.Context, id uuid.UUID) (GasStation, error) {
	return s.repo.GetStation(ctx, id)
}

// ListStations returns all gas stations.
func (s *Service) ListStations(ctx context.Context) ([]GasStation, error) {
	return s.repo.ListStations(ctx)
}

// ListProducts returns a station's products.
func (s *Service) ListProducts(ctx context.Context, gasStationID uuid.UUID) ([]Product, error) {
	return s.repo.ListProducts(ctx, gasStationID)
}

// ListTanks returns a station's tanks.
func (s *Service) ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]Tank, error) {
	return s.repo.ListTanks(ctx, gasStationID)
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetTank returns one tank.
func (s *Service) GetTank(ctx context.Context, id uuid.UUID) (Tank, error) {
	return s.repo.GetTank(ctx, id)
}

// GetNozzle returns one nozzle.
func (s *Service) GetNozzle(ctx context.Context, id uuid.UUID) (Nozzle, error) {
	return s.repo.GetNozzle(ctx, id)
}

// GetPumpStation returns one pump island.
func (s *Service) GetPumpStation(ctx context.Context, id uuid.UUID) (PumpStation, error) {
	return s.repo.GetPumpStation(ctx, id)
}

// CreateStationInput describes a new gas station.
type CreateStationInput struct {
	Name        string
	Address     string
	OpenMinute  int
	CloseMinute int
}

// CreateStation registers a gas station.
func (s *Service) CreateStation(ctx context.Context, input CreateStationInput) (GasStation, error) {
	if input.Name == "" {
		return GasStation{}, errors.New("stations: name required")
	}
	if input.OpenMinute < 0 || input.OpenMinute >= 24*60 || input.CloseMinute < 0 || input.CloseMinute >= 24*60 {
		return GasStation{}, ErrInvalidHours
	}
	station := GasStation{
		ID:          uuid.New(),
		Name:        input.Name,
		Address:     input.Address,
		OpenMinute:  input.OpenMinute,
		CloseMinute: input.CloseMinute,
	}
	if err := s.repo.CreateStation(ctx, station); err != nil {
		return GasStation{}, err
	}
	return station, nil
}

// CreateProductInput describes a new fuel product.
type CreateProductInput struct {
	GasStationID  uuid.UUID
	Name          string
	PurchasePrice int64
	SalePrice     int64
}

// CreateProduct registers a product for a station.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	if input.Name == "" {
		return Product{}, errors.New("stations: product name required")
	}
	if input.PurchasePrice <= 0 || input.SalePrice <= 0 {
		return Product{}, errors.New("stations: prices must be positive")
	}
	product := Product{
		ID:            uuid.New(),
		GasStationID:  input.GasStationID,
		Name:          input.Name,
		PurchasePrice: input.PurchasePrice,
		SalePrice:     input.SalePrice,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return Product{}, err
	}
	return product, nil
}

// CreatePumpStation registers a pump island for a station.
func (s *Service) CreatePumpStation(ctx context.Context, gasStationID uuid.UUID, name string, actorID uuid.UUID) (PumpStation, error) {
	if name == "" {
		return PumpStation{}, errors.New("stations: pump station name required")
	}
	pump := PumpStation{ID: uuid.New(), GasStationID: gasStationID, Name: name}
	if err := s.repo.CreatePumpStation(ctx, pump); err != nil {
		return PumpStation{}, err
	}
	s.recordAudit(ctx, actorID, "pump_station.create", pump.ID.String(), nil)
	return pump, nil
}

// CreateNozzleInput describes a new nozzle wired to the tank it drains.
type CreateNozzleInput struct {
	PumpStationID uuid.UUID
	TankID        uuid.UUID
	Name          string
	ActorID       uuid.UUID
}

// CreateNozzle registers a nozzle. The nozzle's product is taken from its
// tank; sales through the nozzle deplete that tank's stock.
func (s *Service) CreateNozzle(ctx context.Context, input CreateNozzleInput) (Nozzle, error) {
	if input.Name == "" {
		return Nozzle{}, errors.New("stations: nozzle name required")
	}
	pump, err := s.repo.GetPumpStation(ctx, input.PumpStationID)
	if err != nil {
		return Nozzle{}, err
	}
	tank, err := s.repo.GetTank(ctx, input.TankID)
	if err != nil {
		return Nozzle{}, err
	}
	if tank.GasStationID != pump.GasStationID {
		return Nozzle{}, ErrCrossStation
	}
	nozzle := Nozzle{
		ID:            uuid.New(),
		PumpStationID: input.PumpStationID,
		TankID:        tank.ID,
		ProductID:     tank.ProductID,
		Name:          input.Name,
	}
	if err := s.repo.CreateNozzle(ctx, nozzle); err != nil {
		return Nozzle{}, err
	}
	s.recordAudit(ctx, input.ActorID, "nozzle.create", nozzle.ID.String(), map[string]any{
		"tank_id": tank.ID.String(),
	})
	return nozzle, nil
}

// CreateTankInput describes a new tank with its opening stock.
type CreateTankInput struct {
	GasStationID uuid.UUID
	ProductID    uuid.UUID
	Name         string
	Capacity     int64
	InitialStock int64
	ActorID      uuid.UUID
}

// CreateTank inserts the tank, bootstraps the product's COA lines and posts
// the opening equity journal, all inside one atomic unit.
func (s *Service) CreateTank(ctx context.Context, input CreateTankInput) (Tank, error) {
	if input.Capacity <= 0 {
		return Tank{}, errors.New("stations: capacity must be positive")
	}
	if input.InitialStock < 0 || input.InitialStock > input.Capacity {
		return Tank{}, errors.New("stations: initial stock out of range")
	}
	product, err := s.repo.GetProduct(ctx, input.ProductID)
	if err != nil {
		return Tank{}, err
	}
	tank := Tank{
		ID:           uuid.New(),
		GasStationID: input.GasStationID,
		ProductID:    input.ProductID,
		Name:         input.Name,
		Capacity:     input.Capacity,
		InitialStock: input.InitialStock,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertTank(ctx, tank); err != nil {
			return err
		}
		refs := []ledger.AccountRef{
			ledger.InventoryAccount(product.Name),
			ledger.COGSAccount(product.Name),
			ledger.ShrinkageAccount(product.Name),
			ledger.SalesAccount(product.Name),
			ledger.LOAccount(product.Name),
		}
		if err := tx.EnsureAccounts(ctx, input.GasStationID, refs); err != nil {
			return err
		}
		posting, ok := ledger.BuildInitialStock(ledger.InitialStockParams{
			GasStationID: input.GasStationID,
			ProductID:    input.ProductID,
			ProductName:  product.Name,
			DeltaLiters:  input.InitialStock,
			UnitPrice:    product.PurchasePrice,
			Date:         s.now(),
			ActorID:      input.ActorID,
			SourceID:     tank.ID,
		})
		if !ok {
			return nil
		}
		_, err := tx.PostJournal(ctx, posting)
		return err
	})
	if err != nil {
		return Tank{}, err
	}
	s.recordAudit(ctx, input.ActorID, "tank.create", tank.ID.String(), map[string]any{
		"capacity":      tank.Capacity,
		"initial_stock": tank.InitialStock,
	})
	return tank, nil
}

// UpdateInitialStock corrects a tank's opening stock. Allowed only while the
// tank has zero recorded activity; the delta is journaled against equity.
func (s *Service) UpdateInitialStock(ctx context.Context, tankID uuid.UUID, liters int64, actorID uuid.UUID) error {
	if liters < 0 {
		return errors.New("stations: initial stock must be non-negative")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tank, err := tx.GetTankForUpdate(ctx, tankID)
		if err != nil {
			return err
		}
		if liters > tank.Capacity {
			return errors.New("stations: initial stock exceeds capacity")
		}
		active, err := tx.TankHasActivity(ctx, tankID)
		if err != nil {
			return err
		}
		if active {
			return ErrTankHasActivity
		}
		product, err := tx.GetProductForUpdate(ctx, tank.ProductID)
		if err != nil {
			return err
		}
		if err := tx.SetInitialStock(ctx, tankID, liters); err != nil {
			return err
		}
		posting, ok := ledger.BuildInitialStock(ledger.InitialStockParams{
			GasStationID: tank.GasStationID,
			ProductID:    tank.ProductID,
			ProductName:  product.Name,
			DeltaLiters:  liters - tank.InitialStock,
			UnitPrice:    product.PurchasePrice,
			Date:         s.now(),
			ActorID:      actorID,
			SourceID:     uuid.New(),
		})
		if !ok {
			return nil
		}
		_, err = tx.PostJournal(ctx, posting)
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "tank.initial_stock", tankID.String(), map[string]any{"liters": liters})
	return nil
}

// UpdatePurchasePrice changes a product's purchase price and revalues
// on-hand stock plus outstanding LO volume at the new price.
func (s *Service) UpdatePurchasePrice(ctx context.Context, productID uuid.UUID, newPrice int64, actorID uuid.UUID) error {
	if newPrice <= 0 {
		return errors.New("stations: purchase price must be positive")
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	stockLiters, err := s.levels.StationStock(ctx, product.GasStationID, productID)
	if err != nil {
		return err
	}
	loLiters, err := s.levels.RemainingLO(ctx, product.GasStationID, productID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// The LO lock keeps unload approvals from shifting the volumes
		// between the reads above and the revaluation below.
		if err := tx.LockProductLO(ctx, product.GasStationID, productID); err != nil {
			return err
		}
		current, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if current.PurchasePrice == newPrice {
			return nil
		}
		if err := tx.SetPurchasePrice(ctx, productID, newPrice); err != nil {
			return err
		}
		posting, ok := ledger.BuildRevaluation(ledger.RevaluationParams{
			GasStationID: current.GasStationID,
			ProductID:    productID,
			ProductName:  current.Name,
			OldPrice:     current.PurchasePrice,
			NewPrice:     newPrice,
			StockLiters:  stockLiters,
			LOLiters:     loLiters,
			Date:         s.now(),
			ActorID:      actorID,
			SourceID:     uuid.New(),
		})
		if !ok {
			return nil
		}
		_, err = tx.PostJournal(ctx, posting)
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "product.price", productID.String(), map[string]any{
		"old_price": product.PurchasePrice,
		"new_price": newPrice,
	})
	return nil
}

// DeleteTank removes a tank without recorded activity.
func (s *Service) DeleteTank(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	if err := s.repo.DeleteTank(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "tank.delete", id.String(), nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stations",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}
