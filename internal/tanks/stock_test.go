package tanks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func opDate(offset int) time.Time {
	return time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestResolveBaselinePriorDayReading(t *testing.T) {
	anchor := &AnchorReading{LiterValue: 8000, OperationalDate: opDate(-1)}

	baseline := ResolveBaseline(opDate(0), anchor, 5000)
	require.Equal(t, BaselinePriorReading, baseline.Source)
	require.Equal(t, int64(8000), baseline.Stock)
	require.Equal(t, opDate(0), baseline.Since)
}

func TestResolveBaselineEarlierReading(t *testing.T) {
	anchor := &AnchorReading{LiterValue: 7200, OperationalDate: opDate(-4)}

	baseline := ResolveBaseline(opDate(0), anchor, 5000)
	require.Equal(t, BaselineEarlierReading, baseline.Source)
	require.Equal(t, int64(7200), baseline.Stock)
	require.Equal(t, opDate(-3), baseline.Since)
}

func TestResolveBaselineFallsBackToInitialStock(t *testing.T) {
	baseline := ResolveBaseline(opDate(0), nil, 5000)
	require.Equal(t, BaselineInitialStock, baseline.Source)
	require.Equal(t, int64(5000), baseline.Stock)
	require.True(t, baseline.Since.IsZero())
}

func TestOpeningAndRealtimeStock(t *testing.T) {
	baseline := Baseline{Source: BaselineEarlierReading, Stock: 7200, Since: opDate(-3)}
	sinceBaseline := Movements{UnloadedLiters: 3000, SoldLiters: 2100, PumpTestLiters: 40}
	today := Movements{UnloadedLiters: 0, SoldLiters: 900, PumpTestLiters: 10}

	opening := OpeningStock(baseline, sinceBaseline)
	require.Equal(t, int64(7200+3000-2100-40), opening)

	realtime := RealtimeStock(opening, today)
	require.Equal(t, opening-910, realtime)
}

func TestVarianceSign(t *testing.T) {
	require.Equal(t, int64(50), Variance(9000, 8950))
	require.Equal(t, int64(-30), Variance(8920, 8950))
	require.Equal(t, int64(0), Variance(8950, 8950))
}

func TestMovementsNetAndAdd(t *testing.T) {
	a := Movements{UnloadedLiters: 100, SoldLiters: 40, PumpTestLiters: 5}
	b := Movements{UnloadedLiters: 20, SoldLiters: 10, PumpTestLiters: 0}

	require.Equal(t, int64(55), a.Net())
	sum := a.Add(b)
	require.Equal(t, int64(120), sum.UnloadedLiters)
	require.Equal(t, int64(50), sum.SoldLiters)
	require.Equal(t, int64(65), sum.Net())
}

func TestSalesOnlyCountWithApprovedDeposit(t *testing.T) {
	// The movement sums exclude undeposited shifts at query time, so a
	// window with no approved deposits contributes zero sales.
	opening := OpeningStock(Baseline{Source: BaselineInitialStock, Stock: 5000}, Movements{})
	realtime := RealtimeStock(opening, Movements{UnloadedLiters: 1000})
	require.Equal(t, int64(6000), realtime)
}
