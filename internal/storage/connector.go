package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/rs/zerolog/log"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// IObjectStore writes whole objects atomically: a reader sees either the
// complete previous content or the complete new content. List returns keys
// sorted lexically.
type IObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// ICheckpointStore keeps one checkpoint per (stage, worker). ReadCheckpoint
// returns nil and no error when the worker has never checkpointed.
type ICheckpointStore interface {
	ReadCheckpoint(ctx context.Context, stage string, workerID string) (*common.Checkpoint, error)
	WriteCheckpoint(ctx context.Context, cp common.Checkpoint) error
	ListCheckpoints(ctx context.Context, stage string) ([]common.Checkpoint, error)
	DeleteCheckpoints(ctx context.Context, stage string) (int, error)
	Close() error
}

// IPartitionSink receives finalized partition files after the validator has
// checkpointed their source.
type IPartitionSink interface {
	RecordPartitionFiles(ctx context.Context, files []common.PartitionFile) error
	Close() error
}

type IStorage struct {
	Objects     IObjectStore
	Checkpoints ICheckpointStore
}

func (s IStorage) Close() {
	if s.Checkpoints != nil {
		if err := s.Checkpoints.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close checkpoint store")
		}
	}
}

func NewStorageConnector(cfg *config.Config) (IStorage, error) {
	var storage IStorage
	var err error

	storage.Objects, err = NewObjectStore(&cfg.Storage)
	if err != nil {
		return IStorage{}, fmt.Errorf("failed to create object store: %w", err)
	}

	storage.Checkpoints, err = NewCheckpointStore(&cfg.Checkpoint, storage.Objects)
	if err != nil {
		return IStorage{}, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	return storage, nil
}

func NewObjectStore(cfg *config.StorageConfig) (IObjectStore, error) {
	switch cfg.Mode {
	case config.StorageModeS3:
		if cfg.S3 == nil {
			return nil, fmt.Errorf("storage mode s3 requires storage.s3 settings")
		}
		return NewS3ObjectStore(cfg.S3)
	case config.StorageModeLocal, "":
		if cfg.Local == nil || cfg.Local.Root == "" {
			return nil, fmt.Errorf("storage mode local requires storage.local.root")
		}
		return NewLocalObjectStore(cfg.Local)
	}
	return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
}

// NewCheckpointStore opens the configured driver. The object driver shares the
// given object store.
func NewCheckpointStore(cfg *config.CheckpointConfig, objects IObjectStore) (ICheckpointStore, error) {
	var store ICheckpointStore
	var err error

	switch cfg.Driver {
	case config.CheckpointDriverObject, "":
		prefix := ""
		if cfg.Object != nil {
			prefix = cfg.Object.Prefix
		}
		store, err = NewObjectCheckpointStore(objects, prefix)
	case config.CheckpointDriverBadger:
		if cfg.Badger == nil {
			return nil, fmt.Errorf("checkpoint driver badger requires checkpoint.badger settings")
		}
		store, err = NewBadgerCheckpointStore(cfg.Badger)
	case config.CheckpointDriverPebble:
		if cfg.Pebble == nil {
			return nil, fmt.Errorf("checkpoint driver pebble requires checkpoint.pebble settings")
		}
		store, err = NewPebbleCheckpointStore(cfg.Pebble)
	case config.CheckpointDriverRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("checkpoint driver redis requires checkpoint.redis settings")
		}
		store, err = NewRedisCheckpointStore(cfg.Redis)
	case config.CheckpointDriverPostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("checkpoint driver postgres requires checkpoint.postgres settings")
		}
		store, err = NewPostgresCheckpointStore(cfg.Postgres)
	case config.CheckpointDriverMemory:
		var memory *MemoryCheckpointStore
		if memory, err = NewMemoryCheckpointStore(cfg.Memory); err == nil {
			log.Warn().Int("max_items", memory.maxItems).Msg("Memory checkpoint store selected, checkpoints are lost on restart and the oldest are evicted past max_items")
		}
		store = memory
	default:
		return nil, fmt.Errorf("unsupported checkpoint driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("driver", string(cfg.Driver)).Msg("Checkpoint store initialized")
	return store, nil
}

func checkpointKey(stage string, workerID string) string {
	return stage + ":" + workerID
}

func validateCheckpoint(cp common.Checkpoint) error {
	if cp.Stage == "" || cp.WorkerID == "" {
		return fmt.Errorf("checkpoint requires stage and worker id, got %q/%q", cp.Stage, cp.WorkerID)
	}
	return nil
}
