package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/JeroniMan/solana-indexer/internal/common"
)

const (
	defaultCheckpointPrefix = "checkpoints"
	checkpointIndexDir      = "_index"
)

// ObjectCheckpointStore keeps each checkpoint as a small JSON object at
// <prefix>/<stage>/<worker>.json in the shared object store. Every write also
// updates <prefix>/_index/<stage>.json, which holds all checkpoints of the
// stage so listing costs a single read. Index updates are serialized within
// one process; a stage is expected to be written by one process at a time.
type ObjectCheckpointStore struct {
	objects IObjectStore
	prefix  string
	mu      sync.Mutex
}

// checkpointIndex maps worker id to checkpoint.
type checkpointIndex map[string]common.Checkpoint

func NewObjectCheckpointStore(objects IObjectStore, prefix string) (*ObjectCheckpointStore, error) {
	if objects == nil {
		return nil, fmt.Errorf("object checkpoint store requires an object store")
	}
	if prefix == "" {
		prefix = defaultCheckpointPrefix
	}
	return &ObjectCheckpointStore{objects: objects, prefix: strings.Trim(prefix, "/")}, nil
}

func (o *ObjectCheckpointStore) ReadCheckpoint(ctx context.Context, stage string, workerID string) (*common.Checkpoint, error) {
	data, err := o.objects.Get(ctx, o.key(stage, workerID))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint %s/%s: %w", stage, workerID, err)
	}
	cp, err := common.StringToCheckpoint(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s/%s: %w", stage, workerID, err)
	}
	return &cp, nil
}

func (o *ObjectCheckpointStore) WriteCheckpoint(ctx context.Context, cp common.Checkpoint) error {
	if err := validateCheckpoint(cp); err != nil {
		return err
	}
	value, err := common.CheckpointToString(cp)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.objects.Put(ctx, o.key(cp.Stage, cp.WorkerID), []byte(value)); err != nil {
		return fmt.Errorf("failed to write checkpoint %s/%s: %w", cp.Stage, cp.WorkerID, err)
	}

	index, err := o.readIndex(ctx, cp.Stage)
	if err != nil {
		return err
	}
	if index == nil {
		// first write since the index was introduced or dropped
		if index, err = o.scanStage(ctx, cp.Stage); err != nil {
			return err
		}
	}
	index[cp.WorkerID] = cp
	return o.writeIndex(ctx, cp.Stage, index)
}

func (o *ObjectCheckpointStore) ListCheckpoints(ctx context.Context, stage string) ([]common.Checkpoint, error) {
	index, err := o.readIndex(ctx, stage)
	if err != nil {
		return nil, err
	}
	if index == nil {
		if index, err = o.scanStage(ctx, stage); err != nil {
			return nil, err
		}
	}

	checkpoints := make([]common.Checkpoint, 0, len(index))
	for _, cp := range index {
		checkpoints = append(checkpoints, cp)
	}
	sortCheckpoints(checkpoints)
	return checkpoints, nil
}

func (o *ObjectCheckpointStore) DeleteCheckpoints(ctx context.Context, stage string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	objects, err := o.objects.List(ctx, o.stagePrefix(stage))
	if err != nil {
		return 0, fmt.Errorf("failed to list checkpoints for %s: %w", stage, err)
	}
	if err := o.objects.Delete(ctx, o.indexKey(stage)); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return 0, fmt.Errorf("failed to delete checkpoint index of %s: %w", stage, err)
	}
	for _, obj := range objects {
		if err := o.objects.Delete(ctx, obj.Key); err != nil {
			return 0, err
		}
	}
	return len(objects), nil
}

// readIndex returns nil and no error when the stage has no index yet.
func (o *ObjectCheckpointStore) readIndex(ctx context.Context, stage string) (checkpointIndex, error) {
	data, err := o.objects.Get(ctx, o.indexKey(stage))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint index of %s: %w", stage, err)
	}
	index := checkpointIndex{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint index of %s: %w", stage, err)
	}
	return index, nil
}

func (o *ObjectCheckpointStore) writeIndex(ctx context.Context, stage string, index checkpointIndex) error {
	data, err := json.Marshal(index)
	if err != nil {
		return err
	}
	if err := o.objects.Put(ctx, o.indexKey(stage), data); err != nil {
		return fmt.Errorf("failed to write checkpoint index of %s: %w", stage, err)
	}
	return nil
}

// scanStage reads every checkpoint object of the stage.
func (o *ObjectCheckpointStore) scanStage(ctx context.Context, stage string) (checkpointIndex, error) {
	objects, err := o.objects.List(ctx, o.stagePrefix(stage))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for %s: %w", stage, err)
	}

	index := make(checkpointIndex, len(objects))
	for _, obj := range objects {
		data, err := o.objects.Get(ctx, obj.Key)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				continue
			}
			return nil, err
		}
		cp, err := common.StringToCheckpoint(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s: %w", obj.Key, err)
		}
		index[cp.WorkerID] = cp
	}
	return index, nil
}

func (o *ObjectCheckpointStore) Close() error {
	return nil
}

func (o *ObjectCheckpointStore) stagePrefix(stage string) string {
	return path.Join(o.prefix, stage) + "/"
}

func (o *ObjectCheckpointStore) indexKey(stage string) string {
	return path.Join(o.prefix, checkpointIndexDir, stage+".json")
}

func (o *ObjectCheckpointStore) key(stage string, workerID string) string {
	return o.stagePrefix(stage) + workerID + ".json"
}
