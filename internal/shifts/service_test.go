package shifts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

type fakeRepo struct {
	shifts   map[uuid.UUID]*OperatorShift
	deposits map[uuid.UUID]*Deposit
	readings []NozzleReading
	sales    map[uuid.UUID][]SaleLine
	postings []ledger.PostingInput
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		shifts:   make(map[uuid.UUID]*OperatorShift),
		deposits: make(map[uuid.UUID]*Deposit),
		sales:    make(map[uuid.UUID][]SaleLine),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetShift(ctx context.Context, id uuid.UUID) (OperatorShift, error) {
	s, ok := f.shifts[id]
	if !ok {
		return OperatorShift{}, ErrNotFound
	}
	return *s, nil
}

func (f *fakeRepo) ListShifts(ctx context.Context, gasStationID uuid.UUID, date time.Time) ([]OperatorShift, error) {
	var out []OperatorShift
	for _, s := range f.shifts {
		if s.GasStationID == gasStationID && s.Date.Equal(date) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetDepositByShift(ctx context.Context, shiftID uuid.UUID) (Deposit, error) {
	d, ok := f.deposits[shiftID]
	if !ok {
		return Deposit{}, ErrNotFound
	}
	return *d, nil
}

func (f *fakeRepo) ListNozzleReadings(ctx context.Context, shiftID uuid.UUID) ([]NozzleReading, error) {
	var out []NozzleReading
	for _, r := range f.readings {
		if r.OperatorShiftID == shiftID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) LockStation(ctx context.Context, gasStationID uuid.UUID) error { return nil }

func (f *fakeRepo) InsertShift(ctx context.Context, s OperatorShift) error {
	cp := s
	f.shifts[s.ID] = &cp
	return nil
}

func (f *fakeRepo) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (OperatorShift, error) {
	return f.GetShift(ctx, id)
}

func (f *fakeRepo) SetShiftStatus(ctx context.Context, id uuid.UUID, status ShiftStatus) error {
	s, ok := f.shifts[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	s, ok := f.shifts[id]
	if !ok {
		return ErrNotFound
	}
	s.IsVerified = verified
	return nil
}

func (f *fakeRepo) ListSequenced(ctx context.Context, gasStationID uuid.UUID) ([]SequencedShift, error) {
	var out []SequencedShift
	for _, s := range f.shifts {
		if s.GasStationID != gasStationID || s.Status == ShiftCancelled {
			continue
		}
		seq := SequencedShift{
			ID:         s.ID,
			Date:       s.Date,
			Slot:       s.Slot,
			Status:     s.Status,
			IsVerified: s.IsVerified,
		}
		if d, ok := f.deposits[s.ID]; ok {
			status := d.Status
			seq.DepositStatus = &status
		}
		out = append(out, seq)
	}
	return out, nil
}

func (f *fakeRepo) InsertNozzleReading(ctx context.Context, r NozzleReading) error {
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeRepo) GetNozzleReading(ctx context.Context, shiftID, nozzleID uuid.UUID, t ReadingType) (NozzleReading, error) {
	for _, r := range f.readings {
		if r.OperatorShiftID == shiftID && r.NozzleID == nozzleID && r.Type == t {
			return r, nil
		}
	}
	return NozzleReading{}, ErrNotFound
}

func (f *fakeRepo) LastCloseTotalizer(ctx context.Context, nozzleID uuid.UUID) (int64, error) {
	found := false
	var last int64
	for _, r := range f.readings {
		if r.NozzleID == nozzleID && r.Type == ReadingClose {
			found = true
			if r.Totalizer > last {
				last = r.Totalizer
			}
		}
	}
	if !found {
		return 0, ErrNotFound
	}
	return last, nil
}

func (f *fakeRepo) SalesForShift(ctx context.Context, shiftID uuid.UUID) ([]SaleLine, error) {
	return f.sales[shiftID], nil
}

func (f *fakeRepo) InsertDeposit(ctx context.Context, d Deposit) error {
	cp := d
	f.deposits[d.OperatorShiftID] = &cp
	return nil
}

func (f *fakeRepo) GetDepositForUpdate(ctx context.Context, shiftID uuid.UUID) (Deposit, error) {
	return f.GetDepositByShift(ctx, shiftID)
}

func (f *fakeRepo) SetDepositStatus(ctx context.Context, id uuid.UUID, status DepositStatus, adminReceived *int64) error {
	for _, d := range f.deposits {
		if d.ID == id {
			d.Status = status
			if adminReceived != nil {
				d.AdminReceivedAmount = adminReceived
			}
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeRepo) DeleteNonApprovedDeposit(ctx context.Context, shiftID uuid.UUID) error {
	if d, ok := f.deposits[shiftID]; ok && d.Status != DepositApproved {
		delete(f.deposits, shiftID)
	}
	return nil
}

func (f *fakeRepo) DeleteShiftCascade(ctx context.Context, shiftID uuid.UUID) error {
	if _, ok := f.shifts[shiftID]; !ok {
		return ErrNotFound
	}
	delete(f.shifts, shiftID)
	delete(f.deposits, shiftID)
	kept := f.readings[:0]
	for _, r := range f.readings {
		if r.OperatorShiftID != shiftID {
			kept = append(kept, r)
		}
	}
	f.readings = kept
	return nil
}

func (f *fakeRepo) PostJournal(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error) {
	if err := in.Validate(); err != nil {
		return ledger.Transaction{}, err
	}
	f.postings = append(f.postings, in)
	return ledger.Transaction{ID: uuid.New(), SourceModule: in.SourceModule, SourceID: in.SourceID}, nil
}

type fakeStations struct {
	nozzle  stations.Nozzle
	product stations.Product
}

func (f *fakeStations) GetNozzle(ctx context.Context, id uuid.UUID) (stations.Nozzle, error) {
	return f.nozzle, nil
}

func (f *fakeStations) GetProduct(ctx context.Context, id uuid.UUID) (stations.Product, error) {
	return f.product, nil
}

type fixture struct {
	svc       *Service
	repo      *fakeRepo
	stationID uuid.UUID
	productID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	stationID := uuid.New()
	productID := uuid.New()
	ports := &fakeStations{
		nozzle:  stations.Nozzle{ID: uuid.New(), ProductID: productID, Name: "Nozzle 1"},
		product: stations.Product{ID: productID, GasStationID: stationID, Name: "Pertalite", PurchasePrice: 10000, SalePrice: 11000},
	}
	svc := NewService(repo, ports, nil, nil, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2025, 7, 10, 22, 30, 0, 0, time.UTC)
	})
	return &fixture{svc: svc, repo: repo, stationID: stationID, productID: productID}
}

func (fx *fixture) addShift(slot Slot, status ShiftStatus, verified bool) *OperatorShift {
	s := &OperatorShift{
		ID:           uuid.New(),
		StationID:    uuid.New(),
		GasStationID: fx.stationID,
		OperatorID:   uuid.New(),
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		Slot:         slot,
		Status:       status,
		IsVerified:   verified,
	}
	fx.repo.shifts[s.ID] = s
	return s
}

func manager() shared.AuthUser {
	return shared.AuthUser{ID: uuid.New(), Name: "manager", Role: shared.RoleManager}
}

func TestSequenceBlockedHookCountsRejections(t *testing.T) {
	fx := newFixture(t)
	fx.addShift(SlotMorning, ShiftCompleted, false)
	afternoon := fx.addShift(SlotAfternoon, ShiftCompleted, false)

	var blocked int
	fx.svc.OnSequenceBlocked(func() { blocked++ })

	err := fx.svc.Verify(context.Background(), afternoon.ID, manager())
	var seqErr *OutOfSequenceError
	require.ErrorAs(t, err, &seqErr)
	require.Equal(t, 1, blocked)

	// A rejection for any other reason leaves the counter alone.
	err = fx.svc.Verify(context.Background(), uuid.New(), manager())
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, blocked)
}

func TestVerifyEnforcesSequence(t *testing.T) {
	fx := newFixture(t)
	morning := fx.addShift(SlotMorning, ShiftCompleted, false)
	afternoon := fx.addShift(SlotAfternoon, ShiftCompleted, false)

	err := fx.svc.Verify(context.Background(), afternoon.ID, manager())
	var seqErr *OutOfSequenceError
	require.ErrorAs(t, err, &seqErr)
	require.Equal(t, morning.ID, seqErr.BlockingShiftID)

	require.NoError(t, fx.svc.Verify(context.Background(), morning.ID, manager()))
	require.NoError(t, fx.svc.Verify(context.Background(), afternoon.ID, manager()))
	require.True(t, fx.repo.shifts[afternoon.ID].IsVerified)
}

func TestVerifyRequiresCompletedShift(t *testing.T) {
	fx := newFixture(t)
	started := fx.addShift(SlotMorning, ShiftStarted, false)

	err := fx.svc.Verify(context.Background(), started.ID, manager())
	require.ErrorIs(t, err, ErrShiftNotCompleted)
}

func TestUnverifyCascadesAndBlocksOnApprovedDeposit(t *testing.T) {
	fx := newFixture(t)
	morning := fx.addShift(SlotMorning, ShiftCompleted, true)
	afternoon := fx.addShift(SlotAfternoon, ShiftCompleted, true)
	night := fx.addShift(SlotNight, ShiftCompleted, true)
	fx.repo.deposits[afternoon.ID] = &Deposit{ID: uuid.New(), OperatorShiftID: afternoon.ID, Status: DepositPending}

	require.NoError(t, fx.svc.Unverify(context.Background(), morning.ID, manager()))
	require.False(t, fx.repo.shifts[morning.ID].IsVerified)
	require.False(t, fx.repo.shifts[afternoon.ID].IsVerified)
	require.False(t, fx.repo.shifts[night.ID].IsVerified)
	_, ok := fx.repo.deposits[afternoon.ID]
	require.False(t, ok)

	// Approved deposit on the target blocks the rollback entirely.
	verified := fx.addShift(SlotMorning, ShiftCompleted, true)
	fx.repo.deposits[verified.ID] = &Deposit{ID: uuid.New(), OperatorShiftID: verified.ID, Status: DepositApproved}
	err := fx.svc.Unverify(context.Background(), verified.ID, manager())
	require.ErrorIs(t, err, ErrApprovedDepositExists)
}

func TestUnverifyBlockedByLaterApprovedDeposit(t *testing.T) {
	fx := newFixture(t)
	morning := fx.addShift(SlotMorning, ShiftCompleted, true)
	afternoon := fx.addShift(SlotAfternoon, ShiftCompleted, true)
	fx.repo.deposits[afternoon.ID] = &Deposit{ID: uuid.New(), OperatorShiftID: afternoon.ID, Status: DepositApproved}

	err := fx.svc.Unverify(context.Background(), morning.ID, manager())
	require.ErrorIs(t, err, ErrApprovedDepositExists)

	// Nothing moved: both shifts stay verified and the posted cash journal
	// keeps its deposit.
	require.True(t, fx.repo.shifts[morning.ID].IsVerified)
	require.True(t, fx.repo.shifts[afternoon.ID].IsVerified)
	require.Equal(t, DepositApproved, fx.repo.deposits[afternoon.ID].Status)

	err = fx.svc.DeleteShift(context.Background(), afternoon.ID, manager())
	require.ErrorIs(t, err, ErrShiftVerified)
}

func TestDeleteShiftBlockedByApprovedDeposit(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, false)
	fx.repo.deposits[shift.ID] = &Deposit{ID: uuid.New(), OperatorShiftID: shift.ID, Status: DepositApproved}

	err := fx.svc.DeleteShift(context.Background(), shift.ID, manager())
	require.ErrorIs(t, err, ErrApprovedDepositExists)
	require.Contains(t, fx.repo.shifts, shift.ID)
	require.Contains(t, fx.repo.deposits, shift.ID)
}

func TestUnverifyThenReverifyRoundTrip(t *testing.T) {
	fx := newFixture(t)
	morning := fx.addShift(SlotMorning, ShiftCompleted, true)
	afternoon := fx.addShift(SlotAfternoon, ShiftCompleted, true)

	require.NoError(t, fx.svc.Unverify(context.Background(), morning.ID, manager()))
	require.False(t, fx.repo.shifts[afternoon.ID].IsVerified)

	require.NoError(t, fx.svc.Verify(context.Background(), morning.ID, manager()))
	require.NoError(t, fx.svc.Verify(context.Background(), afternoon.ID, manager()))
	require.True(t, fx.repo.shifts[morning.ID].IsVerified)
	require.True(t, fx.repo.shifts[afternoon.ID].IsVerified)
	require.Empty(t, fx.repo.deposits)
}

func TestCompleteShiftRejectsTotalizerRegression(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftStarted, false)
	nozzleID := uuid.New()
	fx.repo.readings = append(fx.repo.readings, NozzleReading{
		OperatorShiftID: shift.ID,
		NozzleID:        nozzleID,
		Type:            ReadingOpen,
		Totalizer:       10000,
		PriceSnapshot:   11000,
	})

	err := fx.svc.CompleteShift(context.Background(), shift.ID, []NozzleReadingInput{
		{NozzleID: nozzleID, Totalizer: 9990},
	}, manager())
	require.ErrorIs(t, err, ErrTotalizerRegression)
	require.Equal(t, ShiftStarted, fx.repo.shifts[shift.ID].Status)

	err = fx.svc.CompleteShift(context.Background(), shift.ID, []NozzleReadingInput{
		{NozzleID: nozzleID, Totalizer: 10100, PumpTest: 200},
	}, manager())
	require.Error(t, err)

	err = fx.svc.CompleteShift(context.Background(), shift.ID, []NozzleReadingInput{
		{NozzleID: nozzleID, Totalizer: 10100, PumpTest: 10},
	}, manager())
	require.NoError(t, err)
	require.Equal(t, ShiftCompleted, fx.repo.shifts[shift.ID].Status)
}

func TestStartShiftRejectsOpenBelowLastClose(t *testing.T) {
	fx := newFixture(t)
	previous := fx.addShift(SlotMorning, ShiftCompleted, true)
	nozzleID := uuid.New()
	fx.repo.readings = append(fx.repo.readings, NozzleReading{
		OperatorShiftID: previous.ID,
		NozzleID:        nozzleID,
		Type:            ReadingClose,
		Totalizer:       10100,
		PriceSnapshot:   11000,
	})

	regressed := fx.addShift(SlotAfternoon, ShiftPending, false)
	err := fx.svc.StartShift(context.Background(), regressed.ID, []NozzleReadingInput{
		{NozzleID: nozzleID, Totalizer: 10050},
	}, manager())
	require.ErrorIs(t, err, ErrTotalizerRegression)

	next := fx.addShift(SlotNight, ShiftPending, false)
	err = fx.svc.StartShift(context.Background(), next.ID, []NozzleReadingInput{
		{NozzleID: nozzleID, Totalizer: 10100},
	}, manager())
	require.NoError(t, err)
	require.Equal(t, ShiftStarted, fx.repo.shifts[next.ID].Status)
}

func TestInputDepositComputesExpectedTotal(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, true)
	fx.repo.sales[shift.ID] = []SaleLine{
		{ProductID: fx.productID, ProductName: "Pertalite", Liters: 100, PriceSnapshot: 11000},
	}

	deposit, err := fx.svc.InputDeposit(context.Background(), InputDepositInput{
		ShiftID:        shift.ID,
		DeclaredAmount: 1_000_000,
		Titipan:        []TitipanAllocation{{Label: "Pak Haji", Amount: 100_000}},
		FreeFuel:       []FreeFuelAllocation{{ProductID: fx.productID, Liters: 5}},
		Actor:          manager(),
	})
	require.NoError(t, err)
	// 100 L * 11,000 - 5 L * 11,000 + 100,000
	require.Equal(t, int64(1_100_000-55_000+100_000), deposit.TotalAmount)
	require.Equal(t, DepositPending, deposit.Status)

	_, err = fx.svc.InputDeposit(context.Background(), InputDepositInput{
		ShiftID: shift.ID,
		Actor:   manager(),
	})
	require.ErrorIs(t, err, ErrDepositExists)
}

func TestInputDepositRequiresVerification(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, false)

	_, err := fx.svc.InputDeposit(context.Background(), InputDepositInput{
		ShiftID: shift.ID,
		Actor:   manager(),
	})
	require.ErrorIs(t, err, ErrShiftNotVerified)
}

func TestInputDepositEnforcesSequence(t *testing.T) {
	fx := newFixture(t)
	morning := fx.addShift(SlotMorning, ShiftCompleted, true)
	afternoon := fx.addShift(SlotAfternoon, ShiftCompleted, true)

	_, err := fx.svc.InputDeposit(context.Background(), InputDepositInput{
		ShiftID: afternoon.ID,
		Actor:   manager(),
	})
	var seqErr *OutOfSequenceError
	require.ErrorAs(t, err, &seqErr)
	require.Equal(t, morning.ID, seqErr.BlockingShiftID)
}

func TestApproveDepositPostsComputedJournal(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, true)
	fx.repo.sales[shift.ID] = []SaleLine{
		{ProductID: fx.productID, ProductName: "Pertalite", Liters: 100, PriceSnapshot: 11000},
	}
	deposit, err := fx.svc.InputDeposit(context.Background(), InputDepositInput{
		ShiftID:        shift.ID,
		DeclaredAmount: 999, // operator figure never reaches the ledger
		Titipan:        []TitipanAllocation{{Label: "Pak Haji", Amount: 100_000}},
		Actor:          manager(),
	})
	require.NoError(t, err)

	approved, err := fx.svc.ApproveDeposit(context.Background(), shift.ID, 1_200_000, manager())
	require.NoError(t, err)
	require.Equal(t, DepositApproved, approved.Status)
	require.Len(t, fx.repo.postings, 1)

	posting := fx.repo.postings[0]
	require.Equal(t, "deposits", posting.SourceModule)
	require.Equal(t, deposit.ID, posting.SourceID)
	var debit, cash int64
	for _, line := range posting.Lines {
		debit += line.Debit
		if line.Account.Name == "Kas" {
			cash = line.Debit
		}
	}
	require.Equal(t, int64(1_100_000+100_000), cash)
	require.Equal(t, cash, debit)

	_, err = fx.svc.ApproveDeposit(context.Background(), shift.ID, 1_200_000, manager())
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	require.Len(t, fx.repo.postings, 1)
}

func TestRejectDepositAllowsReinput(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, true)
	fx.repo.sales[shift.ID] = []SaleLine{
		{ProductID: fx.productID, ProductName: "Pertalite", Liters: 10, PriceSnapshot: 11000},
	}
	_, err := fx.svc.InputDeposit(context.Background(), InputDepositInput{ShiftID: shift.ID, Actor: manager()})
	require.NoError(t, err)

	_, err = fx.svc.RejectDeposit(context.Background(), shift.ID, "kurang setor", manager())
	require.NoError(t, err)

	replacement, err := fx.svc.InputDeposit(context.Background(), InputDepositInput{ShiftID: shift.ID, Actor: manager()})
	require.NoError(t, err)
	require.Equal(t, DepositPending, replacement.Status)
	require.Len(t, fx.repo.deposits, 1)
}

func TestDeleteShiftBlockedWhileVerified(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, true)

	err := fx.svc.DeleteShift(context.Background(), shift.ID, manager())
	require.ErrorIs(t, err, ErrShiftVerified)

	require.NoError(t, fx.svc.Unverify(context.Background(), shift.ID, manager()))
	require.NoError(t, fx.svc.DeleteShift(context.Background(), shift.ID, manager()))
	require.Empty(t, fx.repo.shifts)
}
