package validator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JeroniMan/solana-indexer/internal/common"
)

var ErrRowCountMismatch = errors.New("split row count does not match source")

// Partition is the group of rows of one source file that share a partition
// key.
type Partition[T common.PartitionRow] struct {
	Key  common.PartitionKey
	Rows []T
}

// Split groups rows by partition key, keeping source order inside every
// group. Rows without a block time cannot be placed and are returned
// separately. Groups come back ordered by key.
func Split[T common.PartitionRow](rows []T, slotsPerEpoch uint64, byHour bool) ([]Partition[T], []T) {
	index := map[common.PartitionKey]int{}
	var partitions []Partition[T]
	var unplaced []T

	for _, row := range rows {
		blockTime := row.RowBlockTime()
		if blockTime == nil {
			unplaced = append(unplaced, row)
			continue
		}
		key := common.NewPartitionKey(row.RowSlot(), *blockTime, slotsPerEpoch, byHour)
		i, ok := index[key]
		if !ok {
			i = len(partitions)
			index[key] = i
			partitions = append(partitions, Partition[T]{Key: key})
		}
		partitions[i].Rows = append(partitions[i].Rows, row)
	}

	sort.Slice(partitions, func(i, j int) bool {
		return partitions[i].Key.Less(partitions[j].Key)
	})
	return partitions, unplaced
}

// checkLossless verifies that the split kept every row exactly once.
func checkLossless[T common.PartitionRow](source []T, partitions []Partition[T], unplaced []T) error {
	total := len(unplaced)
	for _, p := range partitions {
		total += len(p.Rows)
	}
	if total != len(source) {
		return fmt.Errorf("%w: source has %d rows, outputs have %d", ErrRowCountMismatch, len(source), total)
	}
	return nil
}

func slotBounds[T common.PartitionRow](rows []T) (uint64, uint64) {
	if len(rows) == 0 {
		return 0, 0
	}
	lo, hi := rows[0].RowSlot(), rows[0].RowSlot()
	for _, r := range rows[1:] {
		if s := r.RowSlot(); s < lo {
			lo = s
		} else if s > hi {
			hi = s
		}
	}
	return lo, hi
}
