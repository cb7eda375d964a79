package storage

import (
	"context"
	"errors"
	"fmt"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/cockroachdb/pebble"
)

type PebbleCheckpointStore struct {
	db *pebble.DB
}

func NewPebbleCheckpointStore(cfg *config.PebbleConfig) (*PebbleCheckpointStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("checkpoint.pebble.path is required")
	}

	opts := &pebble.Options{
		MaxConcurrentCompactions: func() int { return 1 },
		MemTableSize:             16 << 20,
	}
	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}
	return &PebbleCheckpointStore{db: db}, nil
}

func (pc *PebbleCheckpointStore) ReadCheckpoint(ctx context.Context, stage string, workerID string) (*common.Checkpoint, error) {
	val, closer, err := pc.db.Get([]byte(checkpointKey(stage, workerID)))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s/%s: %w", stage, workerID, err)
	}
	defer closer.Close()

	cp, err := common.StringToCheckpoint(string(val))
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s/%s: %w", stage, workerID, err)
	}
	return &cp, nil
}

func (pc *PebbleCheckpointStore) WriteCheckpoint(ctx context.Context, cp common.Checkpoint) error {
	if err := validateCheckpoint(cp); err != nil {
		return err
	}
	value, err := common.CheckpointToString(cp)
	if err != nil {
		return err
	}
	return pc.db.Set([]byte(checkpointKey(cp.Stage, cp.WorkerID)), []byte(value), pebble.Sync)
}

func (pc *PebbleCheckpointStore) ListCheckpoints(ctx context.Context, stage string) ([]common.Checkpoint, error) {
	iter, err := pc.stageIter(stage)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	checkpoints := []common.Checkpoint{}
	for iter.First(); iter.Valid(); iter.Next() {
		cp, err := common.StringToCheckpoint(string(iter.Value()))
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", iter.Key(), err)
		}
		checkpoints = append(checkpoints, cp)
	}
	sortCheckpoints(checkpoints)
	return checkpoints, nil
}

func (pc *PebbleCheckpointStore) DeleteCheckpoints(ctx context.Context, stage string) (int, error) {
	iter, err := pc.stageIter(stage)
	if err != nil {
		return 0, err
	}

	batch := pc.db.NewBatch()
	deleted := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if err := batch.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			iter.Close()
			batch.Close()
			return 0, err
		}
		deleted++
	}
	iter.Close()

	if err := batch.Commit(pebble.Sync); err != nil {
		batch.Close()
		return 0, fmt.Errorf("failed to delete checkpoints for %s: %w", stage, err)
	}
	return deleted, batch.Close()
}

func (pc *PebbleCheckpointStore) Close() error {
	return pc.db.Close()
}

func (pc *PebbleCheckpointStore) stageIter(stage string) (*pebble.Iterator, error) {
	prefix := checkpointKey(stage, "")
	iter, err := pc.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: append([]byte(prefix), 0xff), // End of prefix range
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator for %s: %w", stage, err)
	}
	return iter, nil
}
