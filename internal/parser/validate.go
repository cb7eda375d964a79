package parser

import (
	"fmt"

	"github.com/JeroniMan/solana-indexer/internal/common"
)

// Gated is the outcome of the schema gate for one batch.
type Gated struct {
	Blocks       []common.BlockRecord
	Transactions []common.TransactionRecord
	Rewards      []common.RewardRecord

	Invalid map[common.Entity]int
}

func (g *Gated) InvalidCount() int {
	total := 0
	for _, n := range g.Invalid {
		total += n
	}
	return total
}

// ValidateRecords drops every record that violates its schema. Transactions
// and rewards whose block was dropped go with it, so every remaining row
// references a block row of the same batch.
func ValidateRecords(records *Records, bounds common.SlotRange) *Gated {
	gated := &Gated{Invalid: map[common.Entity]int{}}

	validSlots := common.NewSet[uint64]()
	for _, b := range records.Blocks {
		if err := ValidateBlock(b, bounds); err != nil {
			gated.Invalid[common.EntityBlocks]++
			continue
		}
		validSlots.Add(b.Slot)
		gated.Blocks = append(gated.Blocks, b)
	}
	gated.Invalid[common.EntityBlocks] += records.BadPayloads
	gated.Invalid[common.EntityTransactions] += records.BadTransactions
	gated.Invalid[common.EntityRewards] += records.BadRewards

	for _, tx := range records.Transactions {
		if !validSlots.Contains(tx.Slot) || ValidateTransaction(tx) != nil {
			gated.Invalid[common.EntityTransactions]++
			continue
		}
		gated.Transactions = append(gated.Transactions, tx)
	}
	for _, r := range records.Rewards {
		if !validSlots.Contains(r.Slot) || ValidateReward(r) != nil {
			gated.Invalid[common.EntityRewards]++
			continue
		}
		gated.Rewards = append(gated.Rewards, r)
	}
	return gated
}

func ValidateBlock(b common.BlockRecord, bounds common.SlotRange) error {
	if !bounds.Contains(b.Slot) {
		return fmt.Errorf("slot %d outside batch range %s", b.Slot, bounds)
	}
	if b.BlockHash == "" {
		return fmt.Errorf("slot %d: blockhash is empty", b.Slot)
	}
	if b.Slot > 0 && b.ParentSlot >= b.Slot {
		return fmt.Errorf("slot %d: parent slot %d is not below the slot", b.Slot, b.ParentSlot)
	}
	if b.BlockTime != nil && *b.BlockTime < 0 {
		return fmt.Errorf("slot %d: negative block time %d", b.Slot, *b.BlockTime)
	}
	if b.BlockHeight != nil && *b.BlockHeight < 0 {
		return fmt.Errorf("slot %d: negative block height %d", b.Slot, *b.BlockHeight)
	}
	return nil
}

func ValidateTransaction(tx common.TransactionRecord) error {
	if tx.Signature == "" {
		return fmt.Errorf("slot %d tx %d: signature is empty", tx.Slot, tx.TransactionIndex)
	}
	if tx.TransactionIndex < 0 {
		return fmt.Errorf("slot %d: negative transaction index", tx.Slot)
	}
	return nil
}

func ValidateReward(r common.RewardRecord) error {
	if r.Pubkey == "" {
		return fmt.Errorf("slot %d reward %d: pubkey is empty", r.Slot, r.RewardIndex)
	}
	if r.Commission != nil && (*r.Commission < 0 || *r.Commission > 100) {
		return fmt.Errorf("slot %d reward %d: commission %d out of range", r.Slot, r.RewardIndex, *r.Commission)
	}
	return nil
}
