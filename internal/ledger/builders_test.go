package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func lineTotals(t *testing.T, lines []LineInput) (int64, int64) {
	t.Helper()
	var debit, credit int64
	for _, l := range lines {
		debit += l.Debit
		credit += l.Credit
	}
	return debit, credit
}

func findLine(t *testing.T, lines []LineInput, account string) LineInput {
	t.Helper()
	for _, l := range lines {
		if l.Account.Name == account {
			return l
		}
	}
	t.Fatalf("no line for account %q", account)
	return LineInput{}
}

func TestPostingInputValidate(t *testing.T) {
	base := PostingInput{
		GasStationID: uuid.New(),
		SourceModule: "deposits",
		SourceID:     uuid.New(),
		Lines: []LineInput{
			{Account: CashAccount(), Debit: 500},
			{Account: SalesAccount("Pertalite"), Credit: 500},
		},
	}
	require.NoError(t, base.Validate())

	unbalanced := base
	unbalanced.Lines = []LineInput{
		{Account: CashAccount(), Debit: 500},
		{Account: SalesAccount("Pertalite"), Credit: 400},
	}
	require.ErrorIs(t, unbalanced.Validate(), ErrUnbalanced)

	short := base
	short.Lines = base.Lines[:1]
	require.ErrorIs(t, short.Validate(), ErrTooFewLines)

	negative := base
	negative.Lines = []LineInput{
		{Account: CashAccount(), Debit: -500},
		{Account: SalesAccount("Pertalite"), Credit: -500},
	}
	require.ErrorIs(t, negative.Validate(), ErrNegativeAmount)

	bothSides := base
	bothSides.Lines = []LineInput{
		{Account: CashAccount(), Debit: 500, Credit: 500},
		{Account: SalesAccount("Pertalite"), Credit: 0},
	}
	require.Error(t, bothSides.Validate())

	noStation := base
	noStation.GasStationID = uuid.Nil
	require.Error(t, noStation.Validate())

	noSource := base
	noSource.SourceID = uuid.Nil
	require.Error(t, noSource.Validate())
}

func TestBuildPurchase(t *testing.T) {
	params := PurchaseParams{
		GasStationID: uuid.New(),
		ProductID:    uuid.New(),
		ProductName:  "Pertalite",
		VolumeLiters: 5000,
		UnitPrice:    10000,
		Payment:      CashAccount(),
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy:    uuid.New(),
		SourceID:     uuid.New(),
	}

	posting, err := BuildPurchase(params)
	require.NoError(t, err)
	require.NoError(t, posting.Validate())
	require.Equal(t, StatusPending, posting.Status)
	require.Equal(t, TransactionTypePurchaseBBM, posting.Type)
	require.Equal(t, int64(5000), posting.PurchaseVolume)
	require.Equal(t, "purchases", posting.SourceModule)

	lo := findLine(t, posting.Lines, "LO Pertalite")
	require.Equal(t, int64(50_000_000), lo.Debit)
	cash := findLine(t, posting.Lines, "Kas")
	require.Equal(t, int64(50_000_000), cash.Credit)

	params.Privileged = true
	posting, err = BuildPurchase(params)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, posting.Status)

	params.VolumeLiters = 0
	_, err = BuildPurchase(params)
	require.Error(t, err)
}

func TestBuildVariance(t *testing.T) {
	params := VarianceParams{
		GasStationID:   uuid.New(),
		ProductID:      uuid.New(),
		ProductName:    "Pertalite",
		ReadingID:      uuid.New(),
		Date:           time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		VarianceLiters: 12,
		UnitPrice:      10000,
		ActorID:        uuid.New(),
	}

	posting, ok := BuildVariance(params)
	require.True(t, ok)
	require.NoError(t, posting.Validate())
	require.Equal(t, "tank_readings", posting.SourceModule)
	require.Equal(t, int64(120_000), findLine(t, posting.Lines, "Persediaan Pertalite").Debit)
	require.Equal(t, int64(120_000), findLine(t, posting.Lines, "HPP Pertalite").Credit)

	params.VarianceLiters = -12
	posting, ok = BuildVariance(params)
	require.True(t, ok)
	require.NoError(t, posting.Validate())
	require.Equal(t, int64(120_000), findLine(t, posting.Lines, "Penyusutan Pertalite").Debit)
	require.Equal(t, int64(120_000), findLine(t, posting.Lines, "Persediaan Pertalite").Credit)

	params.VarianceLiters = 0
	_, ok = BuildVariance(params)
	require.False(t, ok)
}

func TestBuildDepositApproval(t *testing.T) {
	productID := uuid.New()
	params := DepositApprovalParams{
		GasStationID: uuid.New(),
		DepositID:    uuid.New(),
		ShiftID:      uuid.New(),
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		ApproverID:   uuid.New(),
		Sales: []ProductAmount{
			{ProductID: productID, ProductName: "Pertalite", Liters: 100, UnitPrice: 11000},
		},
		FreeFuel: []ProductAmount{
			{ProductID: productID, ProductName: "Pertalite", Liters: 5, UnitPrice: 11000},
		},
		Titipan: []TitipanAllocation{{Label: "Pak Budi", Amount: 100_000}},
	}

	posting, err := BuildDepositApproval(params)
	require.NoError(t, err)
	require.NoError(t, posting.Validate())
	require.Equal(t, "deposits", posting.SourceModule)
	require.Equal(t, params.DepositID, posting.SourceID)

	cash := findLine(t, posting.Lines, "Kas")
	require.Equal(t, int64(1_145_000), cash.Debit)
	require.Equal(t, int64(1_100_000), findLine(t, posting.Lines, "Penjualan Pertalite").Credit)
	require.Equal(t, int64(55_000), findLine(t, posting.Lines, "Piutang Karyawan").Debit)
	require.Equal(t, int64(100_000), findLine(t, posting.Lines, "Titipan").Credit)

	debit, credit := lineTotals(t, posting.Lines)
	require.Equal(t, debit, credit)

	params.FreeFuel[0].Liters = 200
	_, err = BuildDepositApproval(params)
	require.Error(t, err)
}

func TestBuildDepositApprovalSkipsZeroLines(t *testing.T) {
	params := DepositApprovalParams{
		GasStationID: uuid.New(),
		DepositID:    uuid.New(),
		ShiftID:      uuid.New(),
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		ApproverID:   uuid.New(),
		Sales: []ProductAmount{
			{ProductID: uuid.New(), ProductName: "Pertalite", Liters: 100, UnitPrice: 11000},
			{ProductID: uuid.New(), ProductName: "Pertamax", Liters: 0, UnitPrice: 13500},
		},
	}
	posting, err := BuildDepositApproval(params)
	require.NoError(t, err)
	require.Len(t, posting.Lines, 2)
	for _, l := range posting.Lines {
		require.NotEqual(t, "Penjualan Pertamax", l.Account.Name)
	}
}

func TestBuildRevaluation(t *testing.T) {
	params := RevaluationParams{
		GasStationID: uuid.New(),
		ProductID:    uuid.New(),
		ProductName:  "Pertalite",
		OldPrice:     10000,
		NewPrice:     10500,
		StockLiters:  2000,
		LOLiters:     8000,
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		ActorID:      uuid.New(),
		SourceID:     uuid.New(),
	}

	posting, ok := BuildRevaluation(params)
	require.True(t, ok)
	require.NoError(t, posting.Validate())
	require.Equal(t, int64(1_000_000), findLine(t, posting.Lines, "Persediaan Pertalite").Debit)
	require.Equal(t, int64(4_000_000), findLine(t, posting.Lines, "LO Pertalite").Debit)
	require.Equal(t, int64(5_000_000), findLine(t, posting.Lines, "Modal").Credit)

	params.NewPrice = 9500
	posting, ok = BuildRevaluation(params)
	require.True(t, ok)
	require.NoError(t, posting.Validate())
	require.Equal(t, int64(1_000_000), findLine(t, posting.Lines, "Persediaan Pertalite").Credit)
	require.Equal(t, int64(4_000_000), findLine(t, posting.Lines, "LO Pertalite").Credit)
	require.Equal(t, int64(5_000_000), findLine(t, posting.Lines, "Modal").Debit)

	params.NewPrice = params.OldPrice
	_, ok = BuildRevaluation(params)
	require.False(t, ok)
}

func TestBuildInitialStock(t *testing.T) {
	params := InitialStockParams{
		GasStationID: uuid.New(),
		ProductID:    uuid.New(),
		ProductName:  "Pertalite",
		DeltaLiters:  3000,
		UnitPrice:    10000,
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		ActorID:      uuid.New(),
		SourceID:     uuid.New(),
	}

	posting, ok := BuildInitialStock(params)
	require.True(t, ok)
	require.NoError(t, posting.Validate())
	require.Equal(t, int64(30_000_000), findLine(t, posting.Lines, "Persediaan Pertalite").Debit)
	require.Equal(t, int64(30_000_000), findLine(t, posting.Lines, "Modal").Credit)

	params.DeltaLiters = -500
	posting, ok = BuildInitialStock(params)
	require.True(t, ok)
	require.NoError(t, posting.Validate())
	require.Equal(t, int64(5_000_000), findLine(t, posting.Lines, "Modal").Debit)
	require.Equal(t, int64(5_000_000), findLine(t, posting.Lines, "Persediaan Pertalite").Credit)

	params.DeltaLiters = 0
	_, ok = BuildInitialStock(params)
	require.False(t, ok)
}
