package common

import "fmt"

type Entity string

const (
	EntityBlocks       Entity = "blocks"
	EntityTransactions Entity = "transactions"
	EntityRewards      Entity = "rewards"
)

var Entities = []Entity{EntityBlocks, EntityTransactions, EntityRewards}

func ParseEntity(s string) (Entity, error) {
	for _, e := range Entities {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown entity %q", s)
}

// PartitionRow is implemented by every columnar record so the validator can
// derive a partition key without knowing the entity.
type PartitionRow interface {
	RowSlot() uint64
	RowBlockTime() *int64
}

type BlockRecord struct {
	Slot              uint64 `parquet:"slot" json:"slot"`
	BlockHash         string `parquet:"blockhash" json:"blockhash"`
	PreviousBlockHash string `parquet:"previous_blockhash" json:"previous_blockhash"`
	ParentSlot        uint64 `parquet:"parent_slot" json:"parent_slot"`
	BlockHeight       *int64 `parquet:"block_height,optional" json:"block_height"`
	BlockTime         *int64 `parquet:"block_time,optional" json:"block_time"`
	TransactionCount  int32  `parquet:"transaction_count" json:"transaction_count"`
	RewardCount       int32  `parquet:"reward_count" json:"reward_count"`
	CollectedAt       int64  `parquet:"collected_at" json:"collected_at"`
}

func (b BlockRecord) RowSlot() uint64      { return b.Slot }
func (b BlockRecord) RowBlockTime() *int64 { return b.BlockTime }

type RewardRecord struct {
	Slot        uint64 `parquet:"slot" json:"slot"`
	BlockTime   *int64 `parquet:"block_time,optional" json:"block_time"`
	RewardIndex int32  `parquet:"reward_index" json:"reward_index"`
	Pubkey      string `parquet:"pubkey" json:"pubkey"`
	Lamports    int64  `parquet:"lamports" json:"lamports"`
	PostBalance uint64 `parquet:"post_balance" json:"post_balance"`
	RewardType  string `parquet:"reward_type" json:"reward_type"`
	Commission  *int32 `parquet:"commission,optional" json:"commission"`
}

func (r RewardRecord) RowSlot() uint64      { return r.Slot }
func (r RewardRecord) RowBlockTime() *int64 { return r.BlockTime }
