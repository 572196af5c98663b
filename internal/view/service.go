package view

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PettaPuang/nozzle.website-sub003/internal/shifts"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

// StationPort resolves station master data.
type StationPort interface {
	GetStation(ctx context.Context, id uuid.UUID) (stations.GasStation, error)
	ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]stations.Tank, error)
	ListProducts(ctx context.Context, gasStationID uuid.UUID) ([]stations.Product, error)
}

// StockPort computes tank stock levels.
type StockPort interface {
	TankStock(ctx context.Context, tankID uuid.UUID) (opening, realtime int64, err error)
}

// LOPort reports the remaining loading-order balance per product.
type LOPort interface {
	RemainingLO(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error)
}

// ShiftPort lists a station's shifts for one operational date.
type ShiftPort interface {
	ListShifts(ctx context.Context, gasStationID uuid.UUID, date time.Time) ([]shifts.OperatorShift, error)
}

// TankStatus is one tank line on the dashboard.
type TankStatus struct {
	TankID        uuid.UUID `json:"tankId"`
	Name          string    `json:"name"`
	ProductID     uuid.UUID `json:"productId"`
	Capacity      int64     `json:"capacity"`
	OpeningStock  int64     `json:"openingStock"`
	RealtimeStock int64     `json:"realtimeStock"`
}

// ProductStatus is one product line on the dashboard.
type ProductStatus struct {
	ProductID   uuid.UUID `json:"productId"`
	Name        string    `json:"name"`
	SalePrice   int64     `json:"salePrice"`
	RemainingLO int64     `json:"remainingLo"`
}

// ShiftStatus is one shift line on the dashboard.
type ShiftStatus struct {
	ShiftID    uuid.UUID `json:"shiftId"`
	Slot       string    `json:"slot"`
	Status     string    `json:"status"`
	IsVerified bool      `json:"isVerified"`
}

// StationSnapshot aggregates the station dashboard for one operational date.
type StationSnapshot struct {
	StationID uuid.UUID       `json:"stationId"`
	Date      string          `json:"date"`
	Tanks     []TankStatus    `json:"tanks"`
	Products  []ProductStatus `json:"products"`
	Shifts    []ShiftStatus   `json:"shifts"`
	BuiltAt   time.Time       `json:"builtAt"`
}

// Service builds cached station snapshots.
type Service struct {
	cache       *Cache
	stationPort StationPort
	stock       StockPort
	lo          LOPort
	shiftPort   ShiftPort
	now         func() time.Time
}

// NewService constructs the view service.
func NewService(cache *Cache, stationPort StationPort, stock StockPort, lo LOPort, shiftPort ShiftPort) *Service {
	return &Service{
		cache:       cache,
		stationPort: stationPort,
		stock:       stock,
		lo:          lo,
		shiftPort:   shiftPort,
		now:         time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// StationSnapshot returns the dashboard for the station's current
// operational date, building and caching it on a miss.
func (s *Service) StationSnapshot(ctx context.Context, stationID uuid.UUID) (StationSnapshot, error) {
	var snapshot StationSnapshot
	err := s.cache.FetchJSON(ctx, stationID, "dashboard", &snapshot, func(ctx context.Context) (any, error) {
		return s.build(ctx, stationID)
	})
	return snapshot, err
}

// build fans out the three dashboard sections concurrently.
func (s *Service) build(ctx context.Context, stationID uuid.UUID) (StationSnapshot, error) {
	station, err := s.stationPort.GetStation(ctx, stationID)
	if err != nil {
		return StationSnapshot{}, err
	}
	date := station.OperationalDate(s.now())
	snapshot := StationSnapshot{
		StationID: stationID,
		Date:      date.Format("2006-01-02"),
		BuiltAt:   s.now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tankList, err := s.stationPort.ListTanks(gctx, stationID)
		if err != nil {
			return err
		}
		for _, tank := range tankList {
			opening, realtime, err := s.stock.TankStock(gctx, tank.ID)
			if err != nil {
				return err
			}
			snapshot.Tanks = append(snapshot.Tanks, TankStatus{
				TankID:        tank.ID,
				Name:          tank.Name,
				ProductID:     tank.ProductID,
				Capacity:      tank.Capacity,
				OpeningStock:  opening,
				RealtimeStock: realtime,
			})
		}
		return nil
	})
	g.Go(func() error {
		products, err := s.stationPort.ListProducts(gctx, stationID)
		if err != nil {
			return err
		}
		for _, product := range products {
			remaining, err := s.lo.RemainingLO(gctx, stationID, product.ID)
			if err != nil {
				return err
			}
			snapshot.Products = append(snapshot.Products, ProductStatus{
				ProductID:   product.ID,
				Name:        product.Name,
				SalePrice:   product.SalePrice,
				RemainingLO: remaining,
			})
		}
		return nil
	})
	g.Go(func() error {
		shiftList, err := s.shiftPort.ListShifts(gctx, stationID, date)
		if err != nil {
			return err
		}
		for _, shift := range shiftList {
			snapshot.Shifts = append(snapshot.Shifts, ShiftStatus{
				ShiftID:    shift.ID,
				Slot:       string(shift.Slot),
				Status:     string(shift.Status),
				IsVerified: shift.IsVerified,
			})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return StationSnapshot{}, err
	}
	return snapshot, nil
}
