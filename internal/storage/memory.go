package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

// MemoryObjectStore is a process-local object store, used by tests and by
// single-process dry runs.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// SetClock replaces the source of LastModified times.
func (m *MemoryObjectStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied := make([]byte, len(data))
	copy(copied, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: copied, lastModified: m.now()}
	return nil
}

func (m *MemoryObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	copied := make([]byte, len(obj.data))
	copy(copied, obj.data)
	return copied, nil
}

func (m *MemoryObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := []ObjectInfo{}
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.lastModified})
		}
	}
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})
	return objects, nil
}

func (m *MemoryObjectStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// MemoryCheckpointStore keeps checkpoints in a bounded LRU. It does not
// survive restarts.
type MemoryCheckpointStore struct {
	cache    *lru.Cache[string, common.Checkpoint]
	maxItems int
}

func NewMemoryCheckpointStore(cfg *config.MemoryConfig) (*MemoryCheckpointStore, error) {
	maxItems := 10000
	if cfg != nil && cfg.MaxItems > 0 {
		maxItems = cfg.MaxItems
	}

	cache, err := lru.New[string, common.Checkpoint](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &MemoryCheckpointStore{cache: cache, maxItems: maxItems}, nil
}

func (m *MemoryCheckpointStore) ReadCheckpoint(ctx context.Context, stage string, workerID string) (*common.Checkpoint, error) {
	cp, ok := m.cache.Get(checkpointKey(stage, workerID))
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (m *MemoryCheckpointStore) WriteCheckpoint(ctx context.Context, cp common.Checkpoint) error {
	if err := validateCheckpoint(cp); err != nil {
		return err
	}
	m.cache.Add(checkpointKey(cp.Stage, cp.WorkerID), cp)
	return nil
}

func (m *MemoryCheckpointStore) ListCheckpoints(ctx context.Context, stage string) ([]common.Checkpoint, error) {
	prefix := checkpointKey(stage, "")
	checkpoints := []common.Checkpoint{}
	for _, key := range m.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if cp, ok := m.cache.Peek(key); ok {
			checkpoints = append(checkpoints, cp)
		}
	}
	sortCheckpoints(checkpoints)
	return checkpoints, nil
}

func (m *MemoryCheckpointStore) DeleteCheckpoints(ctx context.Context, stage string) (int, error) {
	prefix := checkpointKey(stage, "")
	deleted := 0
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.cache.Remove(key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryCheckpointStore) Close() error {
	return nil
}

func sortCheckpoints(checkpoints []common.Checkpoint) {
	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].WorkerID < checkpoints[j].WorkerID
	})
}
