package purchases

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func day(offset int) time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestAllocateFIFOSplitsAcrossPurchases(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	outstanding := []Outstanding{
		{TransactionID: first, Date: day(0), PurchaseVolume: 5000, DeliveredVolume: 3000},
		{TransactionID: second, Date: day(1), PurchaseVolume: 4000, DeliveredVolume: 0},
	}

	allocations, err := AllocateFIFO(outstanding, 2500)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	require.Equal(t, first, allocations[0].PurchaseTransactionID)
	require.Equal(t, int64(2000), allocations[0].Volume)
	require.Equal(t, second, allocations[1].PurchaseTransactionID)
	require.Equal(t, int64(500), allocations[1].Volume)
}

func TestAllocateFIFOExactFill(t *testing.T) {
	id := uuid.New()
	outstanding := []Outstanding{
		{TransactionID: id, Date: day(0), PurchaseVolume: 3000, DeliveredVolume: 0},
	}

	allocations, err := AllocateFIFO(outstanding, 3000)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	require.Equal(t, int64(3000), allocations[0].Volume)
}

func TestAllocateFIFOSkipsExhaustedPurchases(t *testing.T) {
	exhausted := uuid.New()
	open := uuid.New()
	outstanding := []Outstanding{
		{TransactionID: exhausted, Date: day(0), PurchaseVolume: 1000, DeliveredVolume: 1000},
		{TransactionID: open, Date: day(1), PurchaseVolume: 2000, DeliveredVolume: 500},
	}

	allocations, err := AllocateFIFO(outstanding, 1500)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	require.Equal(t, open, allocations[0].PurchaseTransactionID)
}

func TestAllocateFIFOInsufficientLO(t *testing.T) {
	outstanding := []Outstanding{
		{TransactionID: uuid.New(), Date: day(0), PurchaseVolume: 1000, DeliveredVolume: 800},
	}

	_, err := AllocateFIFO(outstanding, 300)
	require.ErrorIs(t, err, ErrInsufficientLO)

	_, err = AllocateFIFO(nil, 100)
	require.ErrorIs(t, err, ErrInsufficientLO)

	_, err = AllocateFIFO(outstanding, 0)
	require.ErrorIs(t, err, ErrInsufficientLO)
}
