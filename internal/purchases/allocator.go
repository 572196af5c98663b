package purchases

// AllocateFIFO splits a delivered volume across outstanding purchases,
// oldest first. It is pure; the caller holds the per-product serialization
// lock and persists the result inside the same atomic unit.
func AllocateFIFO(outstanding []Outstanding, volume int64) ([]Allocation, error) {
	if volume <= 0 {
		return nil, ErrInsufficientLO
	}
	var allocations []Allocation
	left := volume
	for _, o := range outstanding {
		if left == 0 {
			break
		}
		remaining := o.Remaining()
		if remaining <= 0 {
			continue
		}
		take := remaining
		if left < take {
			take = left
		}
		allocations = append(allocations, Allocation{
			PurchaseTransactionID: o.TransactionID,
			Volume:                take,
		})
		left -= take
	}
	if left > 0 {
		return nil, ErrInsufficientLO
	}
	return allocations, nil
}
