package collector

import (
	"sync"
	"sync/atomic"

	"github.com/JeroniMan/solana-indexer/internal/common"
)

// SlotCursor hands out contiguous slot ranges to open-ended workers. Every
// slot is claimed exactly once and claims never go backwards.
type SlotCursor struct {
	next atomic.Uint64
}

func NewSlotCursor(first uint64) *SlotCursor {
	c := &SlotCursor{}
	c.next.Store(first)
	return c
}

// Claim reserves up to n slots starting at the cursor, never past head.
func (c *SlotCursor) Claim(n int, head uint64) (common.SlotRange, bool) {
	if n <= 0 {
		n = 1
	}
	for {
		first := c.next.Load()
		if first > head {
			return common.SlotRange{}, false
		}
		last := first + uint64(n) - 1
		if last > head {
			last = head
		}
		if c.next.CompareAndSwap(first, last+1) {
			return common.SlotRange{First: first, Last: last}, true
		}
	}
}

func (c *SlotCursor) Next() uint64 {
	return c.next.Load()
}

// rangeQueue holds ranges found missing from the raw archive on startup.
// Open-ended workers drain it before claiming from the cursor.
type rangeQueue struct {
	mu     sync.Mutex
	ranges []common.SlotRange
}

func newRangeQueue(ranges []common.SlotRange, batchSize int) *rangeQueue {
	q := &rangeQueue{}
	for _, r := range ranges {
		q.ranges = append(q.ranges, r.Chunks(batchSize)...)
	}
	return q
}

func (q *rangeQueue) Pop() (common.SlotRange, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ranges) == 0 {
		return common.SlotRange{}, false
	}
	r := q.ranges[0]
	q.ranges = q.ranges[1:]
	return r, true
}

func (q *rangeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ranges)
}
