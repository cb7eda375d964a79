package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// BadgerCheckpointStore keeps checkpoints in an embedded badger database.
// Writes are synced before they return.
type BadgerCheckpointStore struct {
	db     *badger.DB
	stopGC chan struct{}
	gcWG   sync.WaitGroup
}

func NewBadgerCheckpointStore(cfg *config.BadgerConfig) (*BadgerCheckpointStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("checkpoint.badger.path is required")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = true
	opts.Logger = nil
	opts.NumVersionsToKeep = 1
	opts.ValueLogFileSize = 64 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bc := &BadgerCheckpointStore{db: db, stopGC: make(chan struct{})}
	bc.gcWG.Add(1)
	go bc.runGC()
	return bc, nil
}

func (bc *BadgerCheckpointStore) runGC() {
	defer bc.gcWG.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bc.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				log.Debug().Err(err).Msg("Badger value log GC")
			}
		case <-bc.stopGC:
			return
		}
	}
}

func (bc *BadgerCheckpointStore) ReadCheckpoint(ctx context.Context, stage string, workerID string) (*common.Checkpoint, error) {
	var cp *common.Checkpoint
	err := bc.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(checkpointKey(stage, workerID)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := common.StringToCheckpoint(string(val))
			if err != nil {
				return err
			}
			cp = &decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s/%s: %w", stage, workerID, err)
	}
	return cp, nil
}

func (bc *BadgerCheckpointStore) WriteCheckpoint(ctx context.Context, cp common.Checkpoint) error {
	if err := validateCheckpoint(cp); err != nil {
		return err
	}
	value, err := common.CheckpointToString(cp)
	if err != nil {
		return err
	}
	return bc.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(checkpointKey(cp.Stage, cp.WorkerID)), []byte(value))
	})
}

func (bc *BadgerCheckpointStore) ListCheckpoints(ctx context.Context, stage string) ([]common.Checkpoint, error) {
	checkpoints := []common.Checkpoint{}
	err := bc.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(checkpointKey(stage, ""))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				cp, err := common.StringToCheckpoint(string(val))
				if err != nil {
					return err
				}
				checkpoints = append(checkpoints, cp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for %s: %w", stage, err)
	}
	sortCheckpoints(checkpoints)
	return checkpoints, nil
}

func (bc *BadgerCheckpointStore) DeleteCheckpoints(ctx context.Context, stage string) (int, error) {
	var keys [][]byte
	err := bc.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(checkpointKey(stage, ""))
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	err = bc.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete checkpoints for %s: %w", stage, err)
	}
	return len(keys), nil
}

func (bc *BadgerCheckpointStore) Close() error {
	close(bc.stopGC)
	bc.gcWG.Wait()
	return bc.db.Close()
}
