package tanks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/purchases"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

type fakeRepo struct {
	readings    map[uuid.UUID]*TankReading
	unloads     map[uuid.UUID]*Unload
	anchors     map[uuid.UUID]*AnchorReading
	baseMoves   Movements
	todayMoves  Movements
	movesByTank map[uuid.UUID]Movements
	outstanding []purchases.Outstanding
	reserved    int64
	postings    []ledger.PostingInput
	applied     []purchases.Allocation
	stored      []purchases.Allocation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		readings:    make(map[uuid.UUID]*TankReading),
		unloads:     make(map[uuid.UUID]*Unload),
		anchors:     make(map[uuid.UUID]*AnchorReading),
		movesByTank: make(map[uuid.UUID]Movements),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetReading(ctx context.Context, id uuid.UUID) (TankReading, error) {
	r, ok := f.readings[id]
	if !ok {
		return TankReading{}, ErrNotFound
	}
	return *r, nil
}

func (f *fakeRepo) ListReadings(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]TankReading, error) {
	var out []TankReading
	for _, r := range f.readings {
		if r.TankID == tankID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetUnload(ctx context.Context, id uuid.UUID) (Unload, error) {
	u, ok := f.unloads[id]
	if !ok {
		return Unload{}, ErrNotFound
	}
	return *u, nil
}

func (f *fakeRepo) ListUnloads(ctx context.Context, tankID uuid.UUID, limit, offset int) ([]Unload, error) {
	var out []Unload
	for _, u := range f.unloads {
		if u.TankID == tankID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeRepo) LatestApprovedReadingBefore(ctx context.Context, tankID uuid.UUID, date time.Time) (*AnchorReading, error) {
	return f.anchors[tankID], nil
}

func (f *fakeRepo) SumMovements(ctx context.Context, tankID uuid.UUID, from, to time.Time) (Movements, error) {
	if !from.IsZero() && to.Sub(from) == 24*time.Hour {
		if m, ok := f.movesByTank[tankID]; ok {
			return m, nil
		}
		return f.todayMoves, nil
	}
	return f.baseMoves, nil
}

func (f *fakeRepo) LockTankDate(ctx context.Context, tankID uuid.UUID, date time.Time) error {
	return nil
}

func (f *fakeRepo) LockProductLO(ctx context.Context, gasStationID, productID uuid.UUID) error {
	return nil
}

func (f *fakeRepo) HasActiveReading(ctx context.Context, tankID uuid.UUID, date time.Time) (bool, error) {
	for _, r := range f.readings {
		if r.TankID == tankID && r.OperationalDate.Equal(date) && r.Status != ReadingRejected {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) InsertReading(ctx context.Context, r TankReading) error {
	cp := r
	f.readings[r.ID] = &cp
	return nil
}

func (f *fakeRepo) GetReadingForUpdate(ctx context.Context, id uuid.UUID) (TankReading, error) {
	return f.GetReading(ctx, id)
}

func (f *fakeRepo) SetReadingStatus(ctx context.Context, id uuid.UUID, status ReadingStatus, approverID uuid.UUID) error {
	r, ok := f.readings[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.ApproverID = &approverID
	return nil
}

func (f *fakeRepo) InsertUnload(ctx context.Context, u Unload) error {
	cp := u
	f.unloads[u.ID] = &cp
	return nil
}

func (f *fakeRepo) GetUnloadForUpdate(ctx context.Context, id uuid.UUID) (Unload, error) {
	return f.GetUnload(ctx, id)
}

func (f *fakeRepo) SetUnloadStatus(ctx context.Context, id uuid.UUID, status UnloadStatus, approverID uuid.UUID, purchaseTxID *uuid.UUID) error {
	u, ok := f.unloads[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	u.ApproverID = &approverID
	u.PurchaseTransactionID = purchaseTxID
	return nil
}

func (f *fakeRepo) InsertAllocations(ctx context.Context, unloadID uuid.UUID, allocations []purchases.Allocation) error {
	f.stored = append(f.stored, allocations...)
	return nil
}

func (f *fakeRepo) OutstandingForUpdate(ctx context.Context, gasStationID, productID uuid.UUID) ([]purchases.Outstanding, error) {
	return f.outstanding, nil
}

func (f *fakeRepo) ApplyAllocations(ctx context.Context, allocations []purchases.Allocation) error {
	f.applied = append(f.applied, allocations...)
	return nil
}

func (f *fakeRepo) PendingReservedVolume(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error) {
	return f.reserved, nil
}

func (f *fakeRepo) PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error) {
	if err := in.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	f.postings = append(f.postings, in)
	return ledger.Transaction{ID: uuid.New(), SourceModule: in.SourceModule, SourceID: in.SourceID}, nil
}

type fakeStations struct {
	station stations.GasStation
	tank    stations.Tank
	extra   []stations.Tank
	product stations.Product
}

func (f *fakeStations) GetStation(ctx context.Context, id uuid.UUID) (stations.GasStation, error) {
	return f.station, nil
}

func (f *fakeStations) GetTank(ctx context.Context, id uuid.UUID) (stations.Tank, error) {
	for _, t := range f.extra {
		if t.ID == id {
			return t, nil
		}
	}
	return f.tank, nil
}

func (f *fakeStations) GetProduct(ctx context.Context, id uuid.UUID) (stations.Product, error) {
	return f.product, nil
}

func (f *fakeStations) ListTanks(ctx context.Context, gasStationID uuid.UUID) ([]stations.Tank, error) {
	return append([]stations.Tank{f.tank}, f.extra...), nil
}

func newFixture(t *testing.T) (*Service, *fakeRepo, *fakeStations) {
	t.Helper()
	repo := newFakeRepo()
	stationID := uuid.New()
	productID := uuid.New()
	ports := &fakeStations{
		station: stations.GasStation{ID: stationID, Name: "SPBU 74.901.13", OpenMinute: 6 * 60, CloseMinute: 22 * 60},
		tank:    stations.Tank{ID: uuid.New(), GasStationID: stationID, ProductID: productID, Capacity: 10000, InitialStock: 5000},
		product: stations.Product{ID: productID, GasStationID: stationID, Name: "Pertalite", PurchasePrice: 10000, SalePrice: 11000},
	}
	svc := NewService(repo, ports, nil, nil, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	})
	return svc, repo, ports
}

func actor(role shared.Role) shared.AuthUser {
	return shared.AuthUser{ID: uuid.New(), Name: "tester", Role: role}
}

func TestCreateReadingFreezesSnapshot(t *testing.T) {
	svc, repo, ports := newFixture(t)
	repo.baseMoves = Movements{UnloadedLiters: 4000, SoldLiters: 950}
	repo.todayMoves = Movements{SoldLiters: 100}

	reading, err := svc.CreateReading(context.Background(), CreateReadingInput{
		TankID:     ports.tank.ID,
		LiterValue: 8000,
		Actor:      actor(shared.RoleUnloader),
	})
	require.NoError(t, err)
	require.Equal(t, ReadingPending, reading.Status)
	require.Equal(t, int64(5000+4000-950), reading.StockOpen)
	require.Equal(t, reading.StockOpen-100, reading.StockRealtime)
	require.Equal(t, int64(8000)-reading.StockRealtime, reading.Variance)

	_, err = svc.CreateReading(context.Background(), CreateReadingInput{
		TankID:     ports.tank.ID,
		LiterValue: 8100,
		Actor:      actor(shared.RoleUnloader),
	})
	require.ErrorIs(t, err, ErrReadingExists)
	require.Len(t, repo.readings, 1)
	require.Empty(t, repo.postings)
}

func TestApproveReadingPostsVarianceJournal(t *testing.T) {
	svc, repo, ports := newFixture(t)
	repo.todayMoves = Movements{SoldLiters: 1050}

	reading, err := svc.CreateReading(context.Background(), CreateReadingInput{
		TankID:     ports.tank.ID,
		LiterValue: 4000,
		Actor:      actor(shared.RoleUnloader),
	})
	require.NoError(t, err)
	require.Equal(t, int64(50), reading.Variance)

	approved, err := svc.ApproveReading(context.Background(), reading.ID, actor(shared.RoleManager))
	require.NoError(t, err)
	require.Equal(t, ReadingApproved, approved.Status)
	require.Len(t, repo.postings, 1)
	require.Equal(t, "tank_readings", repo.postings[0].SourceModule)
	require.Equal(t, reading.ID, repo.postings[0].SourceID)

	_, err = svc.ApproveReading(context.Background(), reading.ID, actor(shared.RoleManager))
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	require.Len(t, repo.postings, 1)
}

func TestApproveReadingZeroVarianceSkipsJournal(t *testing.T) {
	svc, repo, ports := newFixture(t)

	reading, err := svc.CreateReading(context.Background(), CreateReadingInput{
		TankID:     ports.tank.ID,
		LiterValue: 5000,
		Actor:      actor(shared.RoleUnloader),
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), reading.Variance)

	_, err = svc.ApproveReading(context.Background(), reading.ID, actor(shared.RoleManager))
	require.NoError(t, err)
	require.Empty(t, repo.postings)
}

func TestRejectReadingPostsNothing(t *testing.T) {
	svc, repo, ports := newFixture(t)

	reading, err := svc.CreateReading(context.Background(), CreateReadingInput{
		TankID:     ports.tank.ID,
		LiterValue: 4500,
		Actor:      actor(shared.RoleUnloader),
	})
	require.NoError(t, err)

	rejected, err := svc.RejectReading(context.Background(), reading.ID, actor(shared.RoleManager), "salah catat")
	require.NoError(t, err)
	require.Equal(t, ReadingRejected, rejected.Status)
	require.Empty(t, repo.postings)

	// A rejected reading frees the slot for a replacement.
	_, err = svc.CreateReading(context.Background(), CreateReadingInput{
		TankID:     ports.tank.ID,
		LiterValue: 4600,
		Actor:      actor(shared.RoleUnloader),
	})
	require.NoError(t, err)
}

func TestCreateUnloadCapacityExceeded(t *testing.T) {
	svc, repo, ports := newFixture(t)
	repo.baseMoves = Movements{UnloadedLiters: 3000}
	repo.outstanding = []purchases.Outstanding{
		{TransactionID: uuid.New(), PurchaseVolume: 10000, DeliveredVolume: 0},
	}

	// Realtime stock is 8,000; another 2,500 L overflows the 10,000 L tank.
	_, err := svc.CreateUnload(context.Background(), CreateUnloadInput{
		TankID:          ports.tank.ID,
		DeliveredVolume: 2500,
		LiterAmount:     2500,
		Actor:           actor(shared.RoleUnloader),
	})
	var capErr *CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, int64(8000), capErr.Current)
	require.Empty(t, repo.unloads)
}

func TestCreateUnloadInsufficientLO(t *testing.T) {
	svc, repo, ports := newFixture(t)
	repo.outstanding = []purchases.Outstanding{
		{TransactionID: uuid.New(), PurchaseVolume: 2000, DeliveredVolume: 500},
	}
	repo.reserved = 1000

	_, err := svc.CreateUnload(context.Background(), CreateUnloadInput{
		TankID:          ports.tank.ID,
		DeliveredVolume: 800,
		LiterAmount:     800,
		Actor:           actor(shared.RoleUnloader),
	})
	require.ErrorIs(t, err, purchases.ErrInsufficientLO)
}

func TestCreateUnloadReceivedAboveClaimed(t *testing.T) {
	svc, _, ports := newFixture(t)

	_, err := svc.CreateUnload(context.Background(), CreateUnloadInput{
		TankID:          ports.tank.ID,
		DeliveredVolume: 1000,
		LiterAmount:     1200,
		Actor:           actor(shared.RoleUnloader),
	})
	require.ErrorIs(t, err, ErrDeliveredExceeded)
}

func TestApproveUnloadAllocatesFIFO(t *testing.T) {
	svc, repo, ports := newFixture(t)
	oldest := uuid.New()
	newer := uuid.New()
	repo.outstanding = []purchases.Outstanding{
		{TransactionID: oldest, Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), PurchaseVolume: 5000, DeliveredVolume: 3000},
		{TransactionID: newer, Date: time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC), PurchaseVolume: 4000, DeliveredVolume: 0},
	}

	unload, err := svc.CreateUnload(context.Background(), CreateUnloadInput{
		TankID:          ports.tank.ID,
		DeliveredVolume: 2500,
		LiterAmount:     2500,
		Actor:           actor(shared.RoleUnloader),
	})
	require.NoError(t, err)

	approved, err := svc.ApproveUnload(context.Background(), unload.ID, actor(shared.RoleManager))
	require.NoError(t, err)
	require.Equal(t, UnloadApproved, approved.Status)
	require.NotNil(t, approved.PurchaseTransactionID)
	require.Equal(t, oldest, *approved.PurchaseTransactionID)
	require.Len(t, repo.applied, 2)
	require.Equal(t, int64(2000), repo.applied[0].Volume)
	require.Equal(t, int64(500), repo.applied[1].Volume)

	_, err = svc.ApproveUnload(context.Background(), unload.ID, actor(shared.RoleManager))
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

// Two tanks holding the same product each contribute only their own nozzles'
// sales; the station total must not repeat the product-wide figure per tank.
func TestStationStockSumsPerTankSales(t *testing.T) {
	svc, repo, ports := newFixture(t)
	second := stations.Tank{
		ID:           uuid.New(),
		GasStationID: ports.station.ID,
		ProductID:    ports.tank.ProductID,
		Capacity:     10000,
		InitialStock: 5000,
	}
	ports.extra = []stations.Tank{second}
	repo.movesByTank[ports.tank.ID] = Movements{SoldLiters: 300}
	repo.movesByTank[second.ID] = Movements{SoldLiters: 200}

	total, err := svc.StationStock(context.Background(), ports.station.ID, ports.tank.ProductID)
	require.NoError(t, err)
	require.Equal(t, int64(5000-300+5000-200), total)
}
