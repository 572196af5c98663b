package shifts

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// The sequencer is pure. Callers load every shift of the gas station under
// the station lock and re-validate inside the same atomic unit as the write
// that depends on the answer.

// SequencedShift is the projection the ordering checks need.
type SequencedShift struct {
	ID            uuid.UUID
	Date          time.Time
	Slot          Slot
	Status        ShiftStatus
	IsVerified    bool
	DepositStatus *DepositStatus
}

// Before reports whether a sorts strictly before b in the per-station
// total order (date, slot rank).
func Before(a, b SequencedShift) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Slot.Rank() < b.Slot.Rank()
}

// CanVerify returns nil when every earlier COMPLETED shift is verified,
// else an OutOfSequenceError naming the earliest blocker.
func CanVerify(target SequencedShift, all []SequencedShift) error {
	blocker := earliest(all, func(s SequencedShift) bool {
		return Before(s, target) && s.Status == ShiftCompleted && !s.IsVerified
	})
	if blocker != nil {
		return &OutOfSequenceError{
			BlockingShiftID: blocker.ID,
			BlockingDate:    blocker.Date,
			BlockingSlot:    blocker.Slot,
			Reason:          "not verified",
		}
	}
	return nil
}

// CanDeposit returns nil when every earlier COMPLETED shift is verified and
// carries a PENDING or APPROVED deposit, else an OutOfSequenceError naming
// the earliest blocker.
func CanDeposit(target SequencedShift, all []SequencedShift) error {
	blocker := earliest(all, func(s SequencedShift) bool {
		if !Before(s, target) || s.Status != ShiftCompleted {
			return false
		}
		if !s.IsVerified {
			return true
		}
		return s.DepositStatus == nil || *s.DepositStatus == DepositRejected
	})
	if blocker != nil {
		reason := "not verified"
		if blocker.IsVerified {
			reason = "deposit missing or rejected"
		}
		return &OutOfSequenceError{
			BlockingShiftID: blocker.ID,
			BlockingDate:    blocker.Date,
			BlockingSlot:    blocker.Slot,
			Reason:          reason,
		}
	}
	return nil
}

// LaterVerified lists the ids of verified shifts after the target, in
// order; the unverify cascade clears these.
func LaterVerified(target SequencedShift, all []SequencedShift) []uuid.UUID {
	var later []SequencedShift
	for _, s := range all {
		if Before(target, s) && s.IsVerified {
			later = append(later, s)
		}
	}
	sort.Slice(later, func(i, j int) bool { return Before(later[i], later[j]) })
	ids := make([]uuid.UUID, 0, len(later))
	for _, s := range later {
		ids = append(ids, s.ID)
	}
	return ids
}

// LaterApprovedDeposit returns the earliest shift after the target whose
// deposit is APPROVED. The unverify cascade must stop there: its cash
// journal is already posted and only a reversal may undo it.
func LaterApprovedDeposit(target SequencedShift, all []SequencedShift) *SequencedShift {
	return earliest(all, func(s SequencedShift) bool {
		return Before(target, s) && s.DepositStatus != nil && *s.DepositStatus == DepositApproved
	})
}

func earliest(all []SequencedShift, match func(SequencedShift) bool) *SequencedShift {
	var found *SequencedShift
	for i := range all {
		s := all[i]
		if !match(s) {
			continue
		}
		if found == nil || Before(s, *found) {
			found = &all[i]
		}
	}
	return found
}
