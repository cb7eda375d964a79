package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/rs/zerolog/log"
)

type GapReport struct {
	Range         common.SlotRange    `json:"range"`
	FailedSlots   []common.Checkpoint `json:"failed_slots"`
	MissingRanges []common.SlotRange  `json:"missing_ranges"`
	RawFiles      int                 `json:"raw_files"`
}

func (r *GapReport) MissingSlotCount() uint64 {
	var total uint64
	for _, m := range r.MissingRanges {
		total += m.Len()
	}
	return total
}

func gapWorkerID(slot uint64) string {
	return fmt.Sprintf("%012d", slot)
}

func newGapCheckpoint(result rpc.FetchResult, shard int, now time.Time) common.Checkpoint {
	message := fmt.Sprintf("shard %d", shard)
	if result.Err != nil {
		message = fmt.Sprintf("shard %d: %s", shard, result.Err.Error())
	}
	return common.Checkpoint{
		Stage:     common.StageCollectorGaps,
		WorkerID:  gapWorkerID(result.Slot),
		Slot:      result.Slot,
		Status:    common.CheckpointStatusFailed,
		Message:   message,
		UpdatedAt: now,
	}
}

// CoveredRanges returns the slot range of every raw batch in the archive.
// Files whose names do not parse are ignored.
func CoveredRanges(ctx context.Context, objects storage.IObjectStore) ([]common.SlotRange, error) {
	files, err := objects.List(ctx, common.RawPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw batches: %w", err)
	}
	covered := make([]common.SlotRange, 0, len(files))
	for _, f := range files {
		id, err := common.ParseRawBatchKey(f.Key)
		if err != nil {
			if !errors.Is(err, common.ErrInvalidFileName) {
				return nil, err
			}
			log.Debug().Str("file", f.Key).Msg("Ignoring unrecognised raw file")
			continue
		}
		covered = append(covered, id.Range())
	}
	common.SortSlotRanges(covered)
	return covered, nil
}

// BuildGapReport lists failed slots recorded by the collector and slot
// ranges absent from the raw archive within bounds. A zero bounds.Last
// means up to the highest archived slot.
func BuildGapReport(ctx context.Context, store storage.IStorage, bounds common.SlotRange) (*GapReport, error) {
	covered, err := CoveredRanges(ctx, store.Objects)
	if err != nil {
		return nil, err
	}
	if bounds.Last == 0 {
		for _, r := range covered {
			if r.Last > bounds.Last {
				bounds.Last = r.Last
			}
		}
	}

	report := &GapReport{
		Range:         bounds,
		FailedSlots:   []common.Checkpoint{},
		MissingRanges: []common.SlotRange{},
		RawFiles:      len(covered),
	}
	if bounds.Len() == 0 {
		return report, nil
	}

	if missing := common.MissingRanges(bounds, covered); missing != nil {
		report.MissingRanges = missing
	}

	gaps, err := store.Checkpoints.ListCheckpoints(ctx, common.StageCollectorGaps)
	if err != nil {
		return nil, fmt.Errorf("failed to list gap records: %w", err)
	}
	for _, gap := range gaps {
		if bounds.Contains(gap.Slot) {
			report.FailedSlots = append(report.FailedSlots, gap)
		}
	}
	return report, nil
}
