package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePartitionRecord(t *testing.T) {
	finalized := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	file := common.PartitionFile{
		Entity:     common.EntityBlocks,
		Epoch:      0,
		BlockDate:  "2024-03-01",
		BlockHour:  -1,
		Key:        "blocks/epoch=0/block_date=2024-03-01/blocks_000_00000000_000000000100_000000000104.parquet",
		RowCount:   5,
		MinSlot:    100,
		MaxSlot:    104,
		FinalizeAt: finalized,
	}

	record, err := createPartitionRecord("topic", file)
	require.NoError(t, err)

	assert.Equal(t, "topic", record.Topic)
	assert.Equal(t, file.Key, string(record.Key))
	require.Len(t, record.Headers, 3)
	assert.Equal(t, "entity", record.Headers[0].Key)
	assert.Equal(t, "blocks", string(record.Headers[0].Value))

	var msg PartitionMessage
	require.NoError(t, json.Unmarshal(record.Value, &msg))
	assert.Equal(t, "partition_finalized", msg.Type)
	assert.Equal(t, 5, msg.Data.RowCount)
	assert.True(t, finalized.Equal(msg.Timestamp))
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewPublisher(&config.KafkaConfig{})
	assert.Error(t, err)
}

func TestRecordPartitionFiles_ClosedPublisherIsNoop(t *testing.T) {
	p := &Publisher{topic: DEFAULT_TOPIC}
	err := p.RecordPartitionFiles(context.Background(), []common.PartitionFile{{Key: "k"}})
	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}
