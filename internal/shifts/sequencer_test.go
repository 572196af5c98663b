package shifts

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seqDate(offset int) time.Time {
	return time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func depositStatus(s DepositStatus) *DepositStatus {
	return &s
}

func seqShift(date time.Time, slot Slot, status ShiftStatus, verified bool, deposit *DepositStatus) SequencedShift {
	return SequencedShift{
		ID:            uuid.New(),
		Date:          date,
		Slot:          slot,
		Status:        status,
		IsVerified:    verified,
		DepositStatus: deposit,
	}
}

func TestBeforeOrdersByDateThenSlot(t *testing.T) {
	morning := seqShift(seqDate(0), SlotMorning, ShiftCompleted, false, nil)
	night := seqShift(seqDate(0), SlotNight, ShiftCompleted, false, nil)
	nextMorning := seqShift(seqDate(1), SlotMorning, ShiftCompleted, false, nil)

	require.True(t, Before(morning, night))
	require.True(t, Before(night, nextMorning))
	require.False(t, Before(night, morning))
	require.False(t, Before(morning, morning))
}

func TestCanVerifyBlocksOnEarlierUnverified(t *testing.T) {
	morning := seqShift(seqDate(0), SlotMorning, ShiftCompleted, false, nil)
	afternoon := seqShift(seqDate(0), SlotAfternoon, ShiftCompleted, false, nil)
	all := []SequencedShift{morning, afternoon}

	err := CanVerify(afternoon, all)
	var seqErr *OutOfSequenceError
	require.ErrorAs(t, err, &seqErr)
	require.Equal(t, morning.ID, seqErr.BlockingShiftID)
	require.Equal(t, SlotMorning, seqErr.BlockingSlot)

	require.NoError(t, CanVerify(morning, all))
}

func TestCanVerifyIgnoresPendingEarlierShifts(t *testing.T) {
	// A PENDING or STARTED earlier shift does not gate verification; only
	// COMPLETED ones join the chain.
	pending := seqShift(seqDate(0), SlotMorning, ShiftStarted, false, nil)
	afternoon := seqShift(seqDate(0), SlotAfternoon, ShiftCompleted, false, nil)

	require.NoError(t, CanVerify(afternoon, []SequencedShift{pending, afternoon}))
}

func TestCanDepositNamesEarliestBlocker(t *testing.T) {
	morning := seqShift(seqDate(0), SlotMorning, ShiftCompleted, true, depositStatus(DepositApproved))
	afternoon := seqShift(seqDate(0), SlotAfternoon, ShiftCompleted, false, nil)
	night := seqShift(seqDate(0), SlotNight, ShiftCompleted, true, nil)
	all := []SequencedShift{morning, afternoon, night}

	err := CanDeposit(night, all)
	var seqErr *OutOfSequenceError
	require.ErrorAs(t, err, &seqErr)
	require.Equal(t, afternoon.ID, seqErr.BlockingShiftID)
	require.Equal(t, SlotAfternoon, seqErr.BlockingSlot)
}

func TestCanDepositBlocksOnMissingOrRejectedDeposit(t *testing.T) {
	morning := seqShift(seqDate(0), SlotMorning, ShiftCompleted, true, nil)
	afternoon := seqShift(seqDate(0), SlotAfternoon, ShiftCompleted, true, nil)
	all := []SequencedShift{morning, afternoon}

	var seqErr *OutOfSequenceError
	require.ErrorAs(t, CanDeposit(afternoon, all), &seqErr)
	require.Equal(t, morning.ID, seqErr.BlockingShiftID)

	morning.DepositStatus = depositStatus(DepositRejected)
	all = []SequencedShift{morning, afternoon}
	require.ErrorAs(t, CanDeposit(afternoon, all), &seqErr)

	morning.DepositStatus = depositStatus(DepositPending)
	all = []SequencedShift{morning, afternoon}
	require.NoError(t, CanDeposit(afternoon, all))
}

func TestLaterVerifiedReturnsCascadeTargetsInOrder(t *testing.T) {
	morning := seqShift(seqDate(0), SlotMorning, ShiftCompleted, true, nil)
	afternoon := seqShift(seqDate(0), SlotAfternoon, ShiftCompleted, true, nil)
	night := seqShift(seqDate(0), SlotNight, ShiftCompleted, true, nil)
	nextDay := seqShift(seqDate(1), SlotMorning, ShiftCompleted, true, nil)
	unverified := seqShift(seqDate(1), SlotAfternoon, ShiftCompleted, false, nil)
	all := []SequencedShift{nextDay, night, afternoon, morning, unverified}

	ids := LaterVerified(morning, all)
	require.Equal(t, []uuid.UUID{afternoon.ID, night.ID, nextDay.ID}, ids)

	require.Empty(t, LaterVerified(nextDay, all))
}
