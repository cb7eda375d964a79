package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkpointStoreFactories(t *testing.T) map[string]func() ICheckpointStore {
	return map[string]func() ICheckpointStore{
		"object": func() ICheckpointStore {
			store, err := NewObjectCheckpointStore(NewMemoryObjectStore(), "")
			require.NoError(t, err)
			return store
		},
		"memory": func() ICheckpointStore {
			store, err := NewMemoryCheckpointStore(&config.MemoryConfig{MaxItems: 100})
			require.NoError(t, err)
			return store
		},
		"badger": func() ICheckpointStore {
			store, err := NewBadgerCheckpointStore(&config.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")})
			require.NoError(t, err)
			return store
		},
		"pebble": func() ICheckpointStore {
			store, err := NewPebbleCheckpointStore(&config.PebbleConfig{Path: filepath.Join(t.TempDir(), "pebble")})
			require.NoError(t, err)
			return store
		},
	}
}

func TestCheckpointStores(t *testing.T) {
	for name, factory := range checkpointStoreFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			cp, err := store.ReadCheckpoint(ctx, common.StageCollector, "0")
			require.NoError(t, err)
			assert.Nil(t, cp)

			now := time.Now().UTC().Truncate(time.Second)
			require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{
				Stage: common.StageCollector, WorkerID: "0", Slot: 104, BatchCount: 1,
				Status: common.CheckpointStatusOK, UpdatedAt: now,
			}))
			require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{
				Stage: common.StageCollector, WorkerID: "1", Slot: 109, BatchCount: 1,
				Status: common.CheckpointStatusOK, UpdatedAt: now,
			}))
			require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{
				Stage: common.StageParser, WorkerID: "slots_000_00000000_000000000100_000000000104.json.gz",
				File: "raw/slots_000_00000000_000000000100_000000000104.json.gz", Status: common.CheckpointStatusOK, UpdatedAt: now,
			}))

			// overwrite
			require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{
				Stage: common.StageCollector, WorkerID: "0", Slot: 109, BatchCount: 2,
				Status: common.CheckpointStatusOK, UpdatedAt: now,
			}))

			cp, err = store.ReadCheckpoint(ctx, common.StageCollector, "0")
			require.NoError(t, err)
			require.NotNil(t, cp)
			assert.Equal(t, uint64(109), cp.Slot)
			assert.Equal(t, uint64(2), cp.BatchCount)
			assert.True(t, now.Equal(cp.UpdatedAt))

			collector, err := store.ListCheckpoints(ctx, common.StageCollector)
			require.NoError(t, err)
			require.Len(t, collector, 2)
			assert.Equal(t, "0", collector[0].WorkerID)
			assert.Equal(t, "1", collector[1].WorkerID)

			deleted, err := store.DeleteCheckpoints(ctx, common.StageCollector)
			require.NoError(t, err)
			assert.Equal(t, 2, deleted)

			collector, err = store.ListCheckpoints(ctx, common.StageCollector)
			require.NoError(t, err)
			assert.Empty(t, collector)

			parser, err := store.ListCheckpoints(ctx, common.StageParser)
			require.NoError(t, err)
			assert.Len(t, parser, 1)
		})
	}
}

func TestCheckpointStores_RejectIncompleteCheckpoint(t *testing.T) {
	for name, factory := range checkpointStoreFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()
			err := store.WriteCheckpoint(context.Background(), common.Checkpoint{Stage: common.StageParser})
			assert.Error(t, err)
		})
	}
}

func TestBadgerCheckpointStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := &config.BadgerConfig{Path: filepath.Join(t.TempDir(), "badger")}

	store, err := NewBadgerCheckpointStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{Stage: common.StageCollector, WorkerID: "3", Slot: 42}))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerCheckpointStore(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	cp, err := reopened.ReadCheckpoint(ctx, common.StageCollector, "3")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, uint64(42), cp.Slot)
}

func TestNewCheckpointStore_Drivers(t *testing.T) {
	objects := NewMemoryObjectStore()

	store, err := NewCheckpointStore(&config.CheckpointConfig{}, objects)
	require.NoError(t, err)
	assert.IsType(t, &ObjectCheckpointStore{}, store)

	store, err = NewCheckpointStore(&config.CheckpointConfig{Driver: config.CheckpointDriverMemory}, objects)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCheckpointStore{}, store)

	_, err = NewCheckpointStore(&config.CheckpointConfig{Driver: config.CheckpointDriverBadger}, objects)
	assert.Error(t, err)

	_, err = NewCheckpointStore(&config.CheckpointConfig{Driver: "etcd"}, objects)
	assert.Error(t, err)
}

func TestObjectCheckpointStore_Layout(t *testing.T) {
	ctx := context.Background()
	objects := NewMemoryObjectStore()
	store, err := NewObjectCheckpointStore(objects, "/state/")
	require.NoError(t, err)

	require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{Stage: common.StageValidator, WorkerID: "blocks_x.parquet"}))

	listed, err := objects.List(ctx, "state/validator/")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "state/validator/blocks_x.parquet.json", listed[0].Key)
}

// countingObjectStore counts reads against the wrapped store.
type countingObjectStore struct {
	IObjectStore
	gets atomic.Int32
}

func (c *countingObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets.Add(1)
	return c.IObjectStore.Get(ctx, key)
}

func TestObjectCheckpointStore_ListReadsOneIndex(t *testing.T) {
	ctx := context.Background()
	objects := &countingObjectStore{IObjectStore: NewMemoryObjectStore()}
	store, err := NewObjectCheckpointStore(objects, "")
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{
			Stage: common.StageParser, WorkerID: fmt.Sprintf("slots_000_%08d.json.gz", i), Status: common.CheckpointStatusOK,
		}))
	}

	objects.gets.Store(0)
	listed, err := store.ListCheckpoints(ctx, common.StageParser)
	require.NoError(t, err)
	assert.Len(t, listed, 50)
	assert.Equal(t, int32(1), objects.gets.Load())
	assert.Equal(t, "slots_000_00000000.json.gz", listed[0].WorkerID)

	_, err = objects.Get(ctx, "checkpoints/_index/parser.json")
	assert.NoError(t, err)
}

func TestObjectCheckpointStore_IndexAdoptsExistingObjects(t *testing.T) {
	ctx := context.Background()
	objects := NewMemoryObjectStore()
	store, err := NewObjectCheckpointStore(objects, "")
	require.NoError(t, err)

	// checkpoints written without an index
	for _, worker := range []string{"0", "1"} {
		value, err := common.CheckpointToString(common.Checkpoint{Stage: common.StageCollector, WorkerID: worker, Slot: 10})
		require.NoError(t, err)
		require.NoError(t, objects.Put(ctx, "checkpoints/collector/"+worker+".json", []byte(value)))
	}

	listed, err := store.ListCheckpoints(ctx, common.StageCollector)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	require.NoError(t, store.WriteCheckpoint(ctx, common.Checkpoint{Stage: common.StageCollector, WorkerID: "2", Slot: 20}))
	listed, err = store.ListCheckpoints(ctx, common.StageCollector)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, []string{"0", "1", "2"}, []string{listed[0].WorkerID, listed[1].WorkerID, listed[2].WorkerID})

	deleted, err := store.DeleteCheckpoints(ctx, common.StageCollector)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	_, err = objects.Get(ctx, "checkpoints/_index/collector.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestNewCheckpointStore_WarnsAboutMemoryDriver(t *testing.T) {
	originalLogger := log.Logger
	originalLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(originalLevel)
	}()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	_, err := NewCheckpointStore(&config.CheckpointConfig{Driver: config.CheckpointDriverMemory, Memory: &config.MemoryConfig{MaxItems: 50}}, NewMemoryObjectStore())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"max_items":50`)

	buf.Reset()
	_, err = NewCheckpointStore(&config.CheckpointConfig{}, NewMemoryObjectStore())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), `"level":"warn"`)
}

func TestPostgresConnString(t *testing.T) {
	connStr := postgresConnString(&config.PostgresConfig{
		Host: "db", Port: 5432, Username: "u", Password: "p", Database: "idx", ConnectTimeout: 5,
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=idx sslmode=require connect_timeout=5", connStr)
}
