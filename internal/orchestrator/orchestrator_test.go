package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/collector"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/JeroniMan/solana-indexer/internal/parser"
	"github.com/JeroniMan/solana-indexer/internal/rpc"
	"github.com/JeroniMan/solana-indexer/internal/storage"
	"github.com/JeroniMan/solana-indexer/internal/validator"
	"github.com/JeroniMan/solana-indexer/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 2024-03-01T06:00:00Z
const morning = int64(1709272800)

func newTestStorage(t *testing.T) storage.IStorage {
	checkpoints, err := storage.NewMemoryCheckpointStore(&config.MemoryConfig{MaxItems: 1000})
	require.NoError(t, err)
	return storage.IStorage{Objects: storage.NewMemoryObjectStore(), Checkpoints: checkpoints}
}

func newChainMock(t *testing.T, skipped uint64) *mocks.MockIRPCClient {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.EXPECT().GetBlock(mock.Anything, mock.Anything).RunAndReturn(func(_ context.Context, slot uint64) (json.RawMessage, error) {
		if slot == skipped {
			return nil, &rpc.CodedError{Code: rpc.CodeSlotSkipped, Message: "Slot was skipped"}
		}
		return json.RawMessage(fmt.Sprintf(`{
			"blockhash": "hash%[1]d", "previousBlockhash": "hash%[2]d", "parentSlot": %[2]d, "blockTime": %[3]d,
			"transactions": [{"transaction": {"signatures": ["sig%[1]d"], "message": {"accountKeys": [{"pubkey": "payer"}]}}, "meta": {"err": null, "fee": 5000}, "version": "legacy"}],
			"rewards": []
		}`, slot, slot-1, morning+int64(slot))), nil
	})
	return mockRPC
}

func partitionRows(t *testing.T, store storage.IStorage, prefix string) (map[string]int, int) {
	objects, err := store.Objects.List(context.Background(), prefix)
	require.NoError(t, err)
	dirs := map[string]int{}
	total := 0
	for _, o := range objects {
		data, err := store.Objects.Get(context.Background(), o.Key)
		require.NoError(t, err)
		rows, err := storage.ReadParquet[common.BlockRecord](data)
		require.NoError(t, err)
		dir := o.Key[:strings.LastIndex(o.Key, "/")]
		dirs[dir] += len(rows)
		total += len(rows)
	}
	return dirs, total
}

func TestPipeline_TenSlotScenario(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	retry := rpc.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	c := collector.NewCollector(newChainMock(t, 103), store,
		collector.WithRange(100, 109), collector.WithWorkers(2), collector.WithBatchSize(5), collector.WithRetryPolicy(retry))
	require.NoError(t, c.Run(ctx))

	raw, err := store.Objects.List(ctx, common.RawPrefix)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	consumed, err := parser.NewParser(store).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)

	var blocks int
	for _, o := range raw {
		id, err := common.ParseRawBatchKey(o.Key)
		require.NoError(t, err)
		data, err := store.Objects.Get(ctx, common.ColumnarKey(common.EntityBlocks, id))
		require.NoError(t, err)
		rows, err := storage.ReadParquet[common.BlockRecord](data)
		require.NoError(t, err)
		blocks += len(rows)
	}
	assert.Equal(t, 9, blocks, "one block record per non-skipped slot")

	consumed, err = validator.NewValidator(store).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, consumed)

	dirs, total := partitionRows(t, store, "blocks/")
	assert.Equal(t, map[string]int{"blocks/epoch=0/block_date=2024-03-01": 9}, dirs)
	assert.Equal(t, 9, total)
}

func TestOrchestrator_RunsEnabledStagesUntilCancelled(t *testing.T) {
	store := newTestStorage(t)
	mockRPC := newChainMock(t, 0)
	mockRPC.EXPECT().GetSlot(mock.Anything).Return(uint64(1000), nil).Maybe()

	o := NewOrchestrator(mockRPC, store,
		WithStages(true, true, true),
		WithoutSignalHandling(),
		WithCollectorOptions(collector.WithRange(1, 20), collector.WithWorkers(2), collector.WithBatchSize(5)),
		WithParserOptions(parser.WithPollInterval(5*time.Millisecond)),
		WithValidatorOptions(validator.WithPollInterval(5*time.Millisecond)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx) }()

	// 4 raw batches produce 12 columnar files
	require.Eventually(t, func() bool {
		cps, err := store.Checkpoints.ListCheckpoints(context.Background(), common.StageValidator)
		return err == nil && len(cps) == 12
	}, 10*time.Second, 10*time.Millisecond)
	o.Shutdown()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("orchestrator did not stop")
	}

	_, total := partitionRows(t, store, "blocks/")
	assert.Equal(t, 20, total)
}

func TestOrchestrator_RejectsInvalidSetup(t *testing.T) {
	store := newTestStorage(t)

	err := NewOrchestrator(nil, store, WithStages(false, false, false)).Start(context.Background())
	assert.Error(t, err)

	err = NewOrchestrator(nil, store, WithStages(true, false, false)).Start(context.Background())
	assert.Error(t, err)
}

func TestNewSinks_NoneEnabled(t *testing.T) {
	sinks, err := NewSinks(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, sinks.Len())
	assert.Empty(t, sinks.ValidatorOptions())
	sinks.Close()
}
