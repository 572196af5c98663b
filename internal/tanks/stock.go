package tanks

import "time"

// Stock computation is pure. Callers fetch the windowed movement sums and
// the baseline anchor inside the same atomic unit as any decision that
// depends on the result, then combine them here.

// Movements are liter sums over a window of operational dates. Sales only
// count once the originating shift's deposit is APPROVED; unverified or
// undeposited shifts contribute zero.
type Movements struct {
	UnloadedLiters int64
	SoldLiters     int64
	PumpTestLiters int64
}

// Net is the stock delta the movements produce.
func (m Movements) Net() int64 {
	return m.UnloadedLiters - m.SoldLiters - m.PumpTestLiters
}

// Add combines two movement windows.
func (m Movements) Add(o Movements) Movements {
	return Movements{
		UnloadedLiters: m.UnloadedLiters + o.UnloadedLiters,
		SoldLiters:     m.SoldLiters + o.SoldLiters,
		PumpTestLiters: m.PumpTestLiters + o.PumpTestLiters,
	}
}

// BaselineSource names which fallback strategy anchored the computation.
type BaselineSource string

const (
	BaselinePriorReading   BaselineSource = "PRIOR_READING"
	BaselineEarlierReading BaselineSource = "EARLIER_READING"
	BaselineInitialStock   BaselineSource = "INITIAL_STOCK"
)

// AnchorReading is the approved reading a stock computation anchors on.
type AnchorReading struct {
	LiterValue      int64
	OperationalDate time.Time
}

// Baseline is the resolved anchor: a stock value and the first operational
// date whose movements are not yet folded into it.
type Baseline struct {
	Source BaselineSource
	Stock  int64
	Since  time.Time
}

// ResolveBaseline tries the anchoring strategies in order: the previous
// operational day's approved reading, then the latest approved reading
// before the target date, then the tank's initial stock. A dip reading is a
// closing value, so movements count from the day after it.
func ResolveBaseline(date time.Time, latestBefore *AnchorReading, initialStock int64) Baseline {
	if latestBefore != nil {
		since := latestBefore.OperationalDate.AddDate(0, 0, 1)
		source := BaselineEarlierReading
		if !since.Before(date) {
			source = BaselinePriorReading
			since = date
		}
		return Baseline{Source: source, Stock: latestBefore.LiterValue, Since: since}
	}
	return Baseline{Source: BaselineInitialStock, Stock: initialStock, Since: time.Time{}}
}

// OpeningStock is the baseline value plus every movement between the
// baseline and the target operational date.
func OpeningStock(baseline Baseline, sinceBaseline Movements) int64 {
	return baseline.Stock + sinceBaseline.Net()
}

// RealtimeStock folds the target day's own movements into the opening value.
func RealtimeStock(opening int64, today Movements) int64 {
	return opening + today.Net()
}

// Variance is the physically dipped value minus the computed realtime
// stock. Positive means more fuel in the tank than the books expect.
func Variance(literValue, realtime int64) int64 {
	return literValue - realtime
}
