package common

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawBatchKey_RoundTrip(t *testing.T) {
	id := BatchID{Shard: 1, Seq: 12, FirstSlot: 105, LastSlot: 109}
	key := RawBatchKey(id)
	assert.Equal(t, "raw/slots_001_00000012_000000000105_000000000109.json.gz", key)

	parsed, err := ParseRawBatchKey(key)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestColumnarKey_RoundTrip(t *testing.T) {
	id := BatchID{Shard: 0, Seq: 3, FirstSlot: 100, LastSlot: 104}
	key := ColumnarKey(EntityTransactions, id)
	assert.Equal(t, "processed/transactions_000_00000003_000000000100_000000000104.parquet", key)

	entity, parsed, err := ParseColumnarKey(key)
	require.NoError(t, err)
	assert.Equal(t, EntityTransactions, entity)
	assert.Equal(t, id, parsed)
}

func TestParseKeys_Invalid(t *testing.T) {
	_, err := ParseRawBatchKey("raw/something.json.gz")
	assert.ErrorIs(t, err, ErrInvalidFileName)

	_, _, err = ParseColumnarKey("processed/logs_000_00000003_000000000100_000000000104.parquet")
	assert.ErrorIs(t, err, ErrInvalidFileName)

	_, err = ParseRawBatchKey(RawBatchKey(BatchID{FirstSlot: 10, LastSlot: 5}))
	assert.ErrorIs(t, err, ErrInvalidFileName)
}

func TestBatchID_LexicalOrderMatchesShardThenSeq(t *testing.T) {
	ids := []BatchID{
		{Shard: 1, Seq: 0, FirstSlot: 105, LastSlot: 109},
		{Shard: 0, Seq: 10, FirstSlot: 150, LastSlot: 154},
		{Shard: 0, Seq: 2, FirstSlot: 110, LastSlot: 114},
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = RawBatchKey(id)
	}
	sort.Strings(keys)
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	for i, id := range ids {
		assert.Equal(t, RawBatchKey(id), keys[i])
	}
}

func TestPartitionKey(t *testing.T) {
	ts := time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC).Unix()

	key := NewPartitionKey(432001, ts, DEFAULT_SLOTS_PER_EPOCH, false)
	assert.Equal(t, PartitionKey{Epoch: 1, BlockDate: "2024-03-09", BlockHour: -1}, key)
	assert.Equal(t, "blocks/epoch=1/block_date=2024-03-09", key.Dir(EntityBlocks))
	assert.Equal(t,
		"blocks/epoch=1/block_date=2024-03-09/blocks_000_00000000_000000000100_000000000104.parquet",
		key.FileKey(EntityBlocks, "processed/blocks_000_00000000_000000000100_000000000104.parquet"))

	hourly := NewPartitionKey(10, ts, DEFAULT_SLOTS_PER_EPOCH, true)
	assert.Equal(t, "rewards/epoch=0/block_date=2024-03-09/block_hour=23", hourly.Dir(EntityRewards))
}

func TestRawBatch_EncodeDecode(t *testing.T) {
	batch := &RawBatch{
		BatchID:   BatchID{Shard: 0, Seq: 0, FirstSlot: 100, LastSlot: 102},
		CreatedAt: 1700000000,
		Blocks: []RawBlock{
			{Slot: 102, Status: SlotStatusError, Code: -32004, Message: "timeout", Attempts: 5},
			{Slot: 100, Status: SlotStatusOK, Code: 200, Attempts: 1, Block: json.RawMessage(`{"blockhash":"abc"}`)},
			{Slot: 101, Status: SlotStatusSkipped, Code: -32007, Attempts: 1},
		},
	}

	data, err := EncodeRawBatch(batch)
	require.NoError(t, err)

	decoded, err := DecodeRawBatch(data)
	require.NoError(t, err)
	assert.Equal(t, batch.BatchID, decoded.BatchID)
	require.Len(t, decoded.Blocks, 3)
	assert.Equal(t, uint64(100), decoded.Blocks[0].Slot)
	assert.JSONEq(t, `{"blockhash":"abc"}`, string(decoded.Blocks[0].Block))
	assert.Equal(t, []uint64{102}, decoded.Gaps())
}

func TestDecodeRawBatch_Garbage(t *testing.T) {
	_, err := DecodeRawBatch([]byte("not gzip"))
	assert.Error(t, err)
}
