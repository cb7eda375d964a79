package common

import "fmt"

const DEFAULT_SLOTS_PER_EPOCH uint64 = 432000

// SlotRange is an inclusive range of slots.
type SlotRange struct {
	First uint64 `json:"first"`
	Last  uint64 `json:"last"`
}

func (r SlotRange) Len() uint64 {
	if r.Last < r.First {
		return 0
	}
	return r.Last - r.First + 1
}

func (r SlotRange) Contains(slot uint64) bool {
	return slot >= r.First && slot <= r.Last
}

func (r SlotRange) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// Chunks splits r into consecutive ranges of at most size slots.
func (r SlotRange) Chunks(size int) []SlotRange {
	if r.Last < r.First || size <= 0 {
		return nil
	}
	var chunks []SlotRange
	for first := r.First; ; {
		last := first + uint64(size) - 1
		if last > r.Last || last < first {
			last = r.Last
		}
		chunks = append(chunks, SlotRange{First: first, Last: last})
		if last == r.Last {
			return chunks
		}
		first = last + 1
	}
}

func Epoch(slot uint64, slotsPerEpoch uint64) uint64 {
	if slotsPerEpoch == 0 {
		slotsPerEpoch = DEFAULT_SLOTS_PER_EPOCH
	}
	return slot / slotsPerEpoch
}

// SplitRange partitions [start, end] into at most n contiguous shards of
// roughly equal size. Earlier shards receive the remainder, so sizes differ
// by at most one slot.
func SplitRange(start, end uint64, n int) []SlotRange {
	if end < start || n <= 0 {
		return nil
	}
	total := end - start + 1
	if uint64(n) > total {
		n = int(total)
	}
	size := total / uint64(n)
	remainder := total % uint64(n)

	shards := make([]SlotRange, 0, n)
	first := start
	for i := 0; i < n; i++ {
		length := size
		if uint64(i) < remainder {
			length++
		}
		shards = append(shards, SlotRange{First: first, Last: first + length - 1})
		first += length
	}
	return shards
}

// MissingRanges returns the sub-ranges of bounds not covered by any of the
// given ranges. Covered ranges may overlap and arrive in any order.
func MissingRanges(bounds SlotRange, covered []SlotRange) []SlotRange {
	if bounds.Len() == 0 {
		return nil
	}
	sorted := make([]SlotRange, len(covered))
	copy(sorted, covered)
	SortSlotRanges(sorted)

	var missing []SlotRange
	next := bounds.First
	for _, r := range sorted {
		if r.Last < next {
			continue
		}
		if r.First > bounds.Last {
			break
		}
		if r.First > next {
			missing = append(missing, SlotRange{First: next, Last: r.First - 1})
		}
		if r.Last >= bounds.Last {
			return missing
		}
		next = r.Last + 1
	}
	if next <= bounds.Last {
		missing = append(missing, SlotRange{First: next, Last: bounds.Last})
	}
	return missing
}
