package validator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-01T00:00:00Z
const march1 = int64(1709251200)

func newTestStorage(t *testing.T) (storage.IStorage, *storage.MemoryObjectStore) {
	checkpoints, err := storage.NewMemoryCheckpointStore(&config.MemoryConfig{MaxItems: 1000})
	require.NoError(t, err)
	objects := storage.NewMemoryObjectStore()
	return storage.IStorage{Objects: objects, Checkpoints: checkpoints}, objects
}

func blockRows(first, last uint64, blockTime func(slot uint64) *int64) []common.BlockRecord {
	var rows []common.BlockRecord
	for slot := first; slot <= last; slot++ {
		rows = append(rows, common.BlockRecord{
			Slot:              slot,
			BlockHash:         fmt.Sprintf("hash%d", slot),
			PreviousBlockHash: fmt.Sprintf("hash%d", slot-1),
			ParentSlot:        slot - 1,
			BlockTime:         blockTime(slot),
		})
	}
	return rows
}

func sameDay(slot uint64) *int64 {
	return common.Ptr(march1 + 3600 + int64(slot))
}

func putColumnar[T any](t *testing.T, store storage.IStorage, entity common.Entity, id common.BatchID, rows []T) (string, []byte) {
	data, err := storage.WriteParquet(rows, "zstd")
	require.NoError(t, err)
	key := common.ColumnarKey(entity, id)
	require.NoError(t, store.Objects.Put(context.Background(), key, data))
	return key, data
}

func listKeys(t *testing.T, store storage.IStorage, prefix string) []string {
	objects, err := store.Objects.List(context.Background(), prefix)
	require.NoError(t, err)
	keys := []string{}
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	return keys
}

func readRows[T any](t *testing.T, store storage.IStorage, key string) []T {
	data, err := store.Objects.Get(context.Background(), key)
	require.NoError(t, err)
	rows, err := storage.ReadParquet[T](data)
	require.NoError(t, err)
	return rows
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
}

func TestValidator_TwoShardsSameDayShareOnePartition(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	first := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 100, LastSlot: 104}
	second := common.BatchID{Shard: 1, Seq: 0, FirstSlot: 105, LastSlot: 109}
	putColumnar(t, store, common.EntityBlocks, first, blockRows(100, 104, sameDay))
	putColumnar(t, store, common.EntityBlocks, second, blockRows(105, 109, sameDay))

	v := NewValidator(store, WithClock(fixedClock))
	consumed, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)

	dir := "blocks/epoch=0/block_date=2024-03-01/"
	keys := listKeys(t, store, "blocks/")
	require.Len(t, keys, 2)
	total := 0
	for _, key := range keys {
		assert.True(t, strings.HasPrefix(key, dir), key)
		total += len(readRows[common.BlockRecord](t, store, key))
	}
	assert.Equal(t, 10, total)
	assert.Empty(t, listKeys(t, store, common.ProcessedPrefix))
}

func TestValidator_SinglePartitionIsMovedUnchanged(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 3, FirstSlot: 100, LastSlot: 104}
	source, data := putColumnar(t, store, common.EntityBlocks, id, blockRows(100, 104, sameDay))

	_, err := NewValidator(store, WithClock(fixedClock)).RunOnce(ctx)
	require.NoError(t, err)

	target := "blocks/epoch=0/block_date=2024-03-01/blocks_000_00000003_000000000100_000000000104.parquet"
	moved, err := store.Objects.Get(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, data, moved)

	_, err = store.Objects.Get(ctx, source)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	cp, err := store.Checkpoints.ReadCheckpoint(ctx, common.StageValidator, "blocks_000_00000003_000000000100_000000000104.parquet")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, source, cp.File)
	assert.Equal(t, common.CheckpointStatusOK, cp.Status)
	assert.Equal(t, uint64(104), cp.Slot)
}

func TestValidator_LosslessSplitAcrossDays(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 200, LastSlot: 209}
	// slots 200-204 on Feb 29th, 205-209 on Mar 1st
	rows := blockRows(200, 209, func(slot uint64) *int64 {
		return common.Ptr(march1 - 5 + int64(slot-200))
	})
	putColumnar(t, store, common.EntityBlocks, id, rows)

	_, err := NewValidator(store, WithClock(fixedClock)).RunOnce(ctx)
	require.NoError(t, err)

	keys := listKeys(t, store, "blocks/")
	require.Len(t, keys, 2)
	assert.True(t, strings.HasPrefix(keys[0], "blocks/epoch=0/block_date=2024-02-29/"))
	assert.True(t, strings.HasPrefix(keys[1], "blocks/epoch=0/block_date=2024-03-01/"))

	var all []common.BlockRecord
	for _, key := range keys {
		part := readRows[common.BlockRecord](t, store, key)
		all = append(all, part...)
		assertRowsMatchPath(t, key, part, common.DEFAULT_SLOTS_PER_EPOCH)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Slot < all[j].Slot })
	assert.Equal(t, rows, all)
}

func TestValidator_SplitAcrossEpochs(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 8, LastSlot: 21}
	txs := []common.TransactionRecord{}
	for slot := uint64(8); slot <= 21; slot++ {
		txs = append(txs, common.TransactionRecord{Slot: slot, BlockTime: sameDay(slot), Signature: fmt.Sprintf("sig%d", slot)})
	}
	putColumnar(t, store, common.EntityTransactions, id, txs)

	v := NewValidator(store, WithSlotsPerEpoch(10), WithClock(fixedClock))
	_, err := v.RunOnce(ctx)
	require.NoError(t, err)

	keys := listKeys(t, store, "transactions/")
	require.Len(t, keys, 3)
	counts := map[string]int{}
	for _, key := range keys {
		part := readRows[common.TransactionRecord](t, store, key)
		assertRowsMatchPath(t, key, part, 10)
		counts[strings.Split(key, "/")[1]] += len(part)
	}
	assert.Equal(t, map[string]int{"epoch=0": 2, "epoch=1": 10, "epoch=2": 2}, counts)
}

func TestValidator_HourBuckets(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 1, LastSlot: 4}
	rewards := []common.RewardRecord{
		{Slot: 1, BlockTime: common.Ptr(march1 + 10), Pubkey: "a"},
		{Slot: 2, BlockTime: common.Ptr(march1 + 20), Pubkey: "b"},
		{Slot: 3, BlockTime: common.Ptr(march1 + 3600), Pubkey: "c"},
		{Slot: 4, BlockTime: common.Ptr(march1 + 7300), Pubkey: "d"},
	}
	putColumnar(t, store, common.EntityRewards, id, rewards)

	_, err := NewValidator(store, WithPartitionByHour(true), WithClock(fixedClock)).RunOnce(ctx)
	require.NoError(t, err)

	keys := listKeys(t, store, "rewards/")
	require.Len(t, keys, 3)
	assert.Contains(t, keys[0], "/block_hour=00/")
	assert.Contains(t, keys[1], "/block_hour=01/")
	assert.Contains(t, keys[2], "/block_hour=02/")
	assert.Len(t, readRows[common.RewardRecord](t, store, keys[0]), 2)
}

func TestValidator_MissingBlockTimeGoesToUnpartitioned(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 100, LastSlot: 103}
	rows := blockRows(100, 103, func(slot uint64) *int64 {
		if slot%2 == 0 {
			return nil
		}
		return sameDay(slot)
	})
	putColumnar(t, store, common.EntityBlocks, id, rows)

	_, err := NewValidator(store, WithClock(fixedClock)).RunOnce(ctx)
	require.NoError(t, err)

	unpartitioned := readRows[common.BlockRecord](t, store, "unpartitioned/blocks/blocks_000_00000000_000000000100_000000000103.parquet")
	require.Len(t, unpartitioned, 2)
	assert.Equal(t, uint64(100), unpartitioned[0].Slot)
	assert.Equal(t, uint64(102), unpartitioned[1].Slot)

	placed := listKeys(t, store, "blocks/")
	require.Len(t, placed, 1)
	assert.Len(t, readRows[common.BlockRecord](t, store, placed[0]), 2)

	cp, err := store.Checkpoints.ReadCheckpoint(ctx, common.StageValidator, "blocks_000_00000000_000000000100_000000000103.parquet")
	require.NoError(t, err)
	assert.Equal(t, common.CheckpointStatusUnpartitioned, cp.Status)
	assert.Equal(t, "2 of 4 rows without block time", cp.Message)
}

func TestValidator_UnreadableFileIsConsumed(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 1, LastSlot: 2}
	key := common.ColumnarKey(common.EntityRewards, id)
	require.NoError(t, store.Objects.Put(ctx, key, []byte("not parquet")))

	consumed, err := NewValidator(store).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)

	data, err := store.Objects.Get(ctx, "unpartitioned/rewards/rewards_000_00000000_000000000001_000000000002.parquet")
	require.NoError(t, err)
	assert.Equal(t, []byte("not parquet"), data)

	cp, err := store.Checkpoints.ReadCheckpoint(ctx, common.StageValidator, "rewards_000_00000000_000000000001_000000000002.parquet")
	require.NoError(t, err)
	assert.Equal(t, common.CheckpointStatusUnpartitioned, cp.Status)
}

func TestValidator_EmptyFileIsConsumedWithoutOutput(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	putColumnar(t, store, common.EntityRewards, common.BatchID{FirstSlot: 1, LastSlot: 2}, []common.RewardRecord{})

	consumed, err := NewValidator(store).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.Empty(t, listKeys(t, store, "rewards/"))
	assert.Empty(t, listKeys(t, store, common.ProcessedPrefix))
}

func TestValidator_RerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 200, LastSlot: 209}
	putColumnar(t, store, common.EntityBlocks, id, blockRows(200, 209, func(slot uint64) *int64 {
		return common.Ptr(march1 - 5 + int64(slot-200))
	}))

	v := NewValidator(store, WithKeepSource(true), WithClock(fixedClock))
	_, err := v.RunOnce(ctx)
	require.NoError(t, err)
	snapshot := map[string][]byte{}
	for _, key := range listKeys(t, store, "blocks/") {
		data, err := store.Objects.Get(ctx, key)
		require.NoError(t, err)
		snapshot[key] = data
	}

	// checkpointed sources are skipped
	consumed, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)

	// reprocessing after a reset lands on the same paths with the same bytes
	_, err = store.Checkpoints.DeleteCheckpoints(ctx, common.StageValidator)
	require.NoError(t, err)
	consumed, err = v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)

	keys := listKeys(t, store, "blocks/")
	require.Len(t, keys, len(snapshot))
	for _, key := range keys {
		data, err := store.Objects.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, snapshot[key], data, key)
	}
}

func TestValidator_PendingIsFIFO(t *testing.T) {
	store, objects := newTestStorage(t)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	objects.SetClock(func() time.Time { return clock })

	later := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 1, LastSlot: 2}
	earlier := common.BatchID{Shard: 9, Seq: 0, FirstSlot: 3, LastSlot: 4}
	putColumnar(t, store, common.EntityBlocks, earlier, []common.BlockRecord{})
	clock = clock.Add(time.Minute)
	putColumnar(t, store, common.EntityBlocks, later, []common.BlockRecord{})
	putColumnar(t, store, common.EntityRewards, later, []common.RewardRecord{})
	require.NoError(t, store.Objects.Put(context.Background(), common.ProcessedPrefix+"README", []byte("x")))

	pending, err := NewValidator(store).Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, earlier, pending[0].Batch)
	assert.Equal(t, common.EntityBlocks, pending[1].Entity)
	assert.Equal(t, common.EntityRewards, pending[2].Entity)
}

type recordingSink struct {
	mu    sync.Mutex
	files []common.PartitionFile
	err   error
}

func (s *recordingSink) RecordPartitionFiles(_ context.Context, files []common.PartitionFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.files = append(s.files, files...)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func TestValidator_SinkFailureDoesNotUnconsume(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t)
	id := common.BatchID{Shard: 0, Seq: 0, FirstSlot: 100, LastSlot: 104}
	putColumnar(t, store, common.EntityBlocks, id, blockRows(100, 104, sameDay))

	broken := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}
	v := NewValidator(store, WithSink("kafka", broken), WithSink("clickhouse", healthy), WithSink("none", nil), WithClock(fixedClock))
	consumed, err := v.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)

	require.Len(t, healthy.files, 1)
	pf := healthy.files[0]
	assert.Equal(t, common.EntityBlocks, pf.Entity)
	assert.Equal(t, "2024-03-01", pf.BlockDate)
	assert.Equal(t, -1, pf.BlockHour)
	assert.Equal(t, 5, pf.RowCount)
	assert.Equal(t, uint64(100), pf.MinSlot)
	assert.Equal(t, uint64(104), pf.MaxSlot)
	assert.Equal(t, common.ColumnarKey(common.EntityBlocks, id), pf.SourceKey)

	cps, err := store.Checkpoints.ListCheckpoints(ctx, common.StageValidator)
	require.NoError(t, err)
	assert.Len(t, cps, 1)
}

func TestSplit_KeepsOrderAndSeparatesUnplaced(t *testing.T) {
	rows := []common.BlockRecord{
		{Slot: 5, BlockTime: common.Ptr(march1 + 86400)},
		{Slot: 1, BlockTime: common.Ptr(march1)},
		{Slot: 3},
		{Slot: 2, BlockTime: common.Ptr(march1 + 1)},
	}
	partitions, unplaced := Split(rows, 100, false)
	require.Len(t, partitions, 2)
	assert.Equal(t, "2024-03-01", partitions[0].Key.BlockDate)
	assert.Equal(t, []common.BlockRecord{rows[1], rows[3]}, partitions[0].Rows)
	assert.Equal(t, "2024-03-02", partitions[1].Key.BlockDate)
	assert.Equal(t, []common.BlockRecord{rows[2]}, unplaced)
	assert.NoError(t, checkLossless(rows, partitions, unplaced))
	assert.ErrorIs(t, checkLossless(rows, partitions[:1], unplaced), ErrRowCountMismatch)
}

// assertRowsMatchPath checks that every row's partition key equals the
// epoch and block_date components of the file path.
func assertRowsMatchPath[T common.PartitionRow](t *testing.T, key string, rows []T, slotsPerEpoch uint64) {
	t.Helper()
	for _, row := range rows {
		require.NotNil(t, row.RowBlockTime())
		pk := common.NewPartitionKey(row.RowSlot(), *row.RowBlockTime(), slotsPerEpoch, false)
		assert.Contains(t, key, fmt.Sprintf("/epoch=%d/block_date=%s/", pk.Epoch, pk.BlockDate))
	}
}
