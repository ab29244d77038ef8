// Package availability – common-availability intersection.
//
// Intersect reduces N per-person available-slot sets to the subset of slot
// identities present in every set. Identity is the exact (start, end)
// timestamp pair, not overlap: independently generated sets only line up
// because every generator anchors slots identically (business hours, whole
// hours, same duration). If anchoring drifted between calls the intersection
// would silently come back empty.
package availability

// slotKey identifies a slot by its exact start/end instants, normalized to
// UTC so equal instants in different locations compare equal.
type slotKey struct {
	start int64
	end   int64
}

func keyOf(s Slot) slotKey {
	return slotKey{start: s.Start.UTC().UnixNano(), end: s.End.UTC().UnixNano()}
}

// Intersect returns the slots common to every input set. Inputs are expected
// to be pre-filtered to available slots (see Free).
//
// Degenerate cases: zero sets → empty result; one set → a copy of that set.
// The operation is commutative: ordering of the input sets does not affect
// the resulting slot identities. Output follows the first set's order.
func Intersect(sets ...[]Slot) []Slot {
	if len(sets) == 0 {
		return []Slot{}
	}

	common := make([]Slot, len(sets[0]))
	copy(common, sets[0])

	for _, set := range sets[1:] {
		present := make(map[slotKey]struct{}, len(set))
		for _, s := range set {
			present[keyOf(s)] = struct{}{}
		}
		filtered := common[:0]
		for _, s := range common {
			if _, ok := present[keyOf(s)]; ok {
				filtered = append(filtered, s)
			}
		}
		common = filtered
		if len(common) == 0 {
			return []Slot{}
		}
	}
	return common
}
