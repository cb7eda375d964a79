package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/JeroniMan/solana-indexer/internal/common"
)

// ErrUndecodable marks a raw batch that cannot be turned into records at all.
// Such batches are quarantined instead of retried.
var ErrUndecodable = errors.New("undecodable raw batch")

type solanaBlock struct {
	Blockhash         string `json:"blockhash"`
	PreviousBlockhash string `json:"previousBlockhash"`
	ParentSlot        uint64 `json:"parentSlot"`
	BlockHeight       *int64 `json:"blockHeight"`
	BlockTime         *int64 `json:"blockTime"`
	// decoded one by one so a bad entry only costs itself
	Transactions []json.RawMessage `json:"transactions"`
	Rewards      []json.RawMessage `json:"rewards"`
}

type solanaTransaction struct {
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys     []accountKey        `json:"accountKeys"`
			Header          *solanaHeader       `json:"header"`
			RecentBlockhash string              `json:"recentBlockhash"`
			Instructions    []solanaInstruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
	Meta    *solanaMeta     `json:"meta"`
	Version json.RawMessage `json:"version"`
}

type solanaHeader struct {
	NumRequiredSignatures       int32 `json:"numRequiredSignatures"`
	NumReadonlySignedAccounts   int32 `json:"numReadonlySignedAccounts"`
	NumReadonlyUnsignedAccounts int32 `json:"numReadonlyUnsignedAccounts"`
}

type solanaInstruction struct {
	ProgramIDIndex *int32           `json:"programIdIndex"`
	ProgramID      string           `json:"programId"`
	Program        string           `json:"program"`
	Data           string           `json:"data"`
	Accounts       []instructionRef `json:"accounts"`
	Parsed         json.RawMessage  `json:"parsed"`
	StackHeight    *int32           `json:"stackHeight"`
}

type solanaMeta struct {
	Err                  json.RawMessage `json:"err"`
	Fee                  uint64          `json:"fee"`
	ComputeUnitsConsumed *uint64         `json:"computeUnitsConsumed"`
	LogMessages          []string        `json:"logMessages"`
	PreBalances          []uint64        `json:"preBalances"`
	PostBalances         []uint64        `json:"postBalances"`
	PreTokenBalances     []tokenBalance  `json:"preTokenBalances"`
	PostTokenBalances    []tokenBalance  `json:"postTokenBalances"`
	InnerInstructions    []struct {
		Index        int32               `json:"index"`
		Instructions []solanaInstruction `json:"instructions"`
	} `json:"innerInstructions"`
}

type tokenBalance struct {
	AccountIndex  int32  `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	ProgramID     string `json:"programId"`
	UITokenAmount struct {
		Amount         string `json:"amount"`
		Decimals       int32  `json:"decimals"`
		UIAmountString string `json:"uiAmountString"`
	} `json:"uiTokenAmount"`
}

type solanaReward struct {
	Pubkey      string  `json:"pubkey"`
	Lamports    int64   `json:"lamports"`
	PostBalance uint64  `json:"postBalance"`
	RewardType  *string `json:"rewardType"`
	Commission  *int32  `json:"commission"`
}

// accountKey accepts both the plain base58 string of the json encoding and
// the {"pubkey": ...} object of the jsonParsed encoding.
type accountKey struct {
	Pubkey   string
	Signer   bool
	Writable bool
	Source   string
	// set when the node reported signer and writable itself
	flagged bool
}

func (a *accountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Pubkey)
	}
	var parsed struct {
		Pubkey   string `json:"pubkey"`
		Signer   bool   `json:"signer"`
		Writable bool   `json:"writable"`
		Source   string `json:"source"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	a.Pubkey = parsed.Pubkey
	a.Signer = parsed.Signer
	a.Writable = parsed.Writable
	a.Source = parsed.Source
	a.flagged = true
	return nil
}

// instructionRef is an instruction account: an index into the account keys
// for the json encoding, a pubkey for jsonParsed.
type instructionRef string

func (r *instructionRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = instructionRef(s)
		return nil
	}
	var index uint32
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	*r = instructionRef(strconv.FormatUint(uint64(index), 10))
	return nil
}

// Records holds the typed rows decoded from one raw batch.
type Records struct {
	Blocks       []common.BlockRecord
	Transactions []common.TransactionRecord
	Rewards      []common.RewardRecord

	// slots that had no payload (skipped or failed after retries)
	EmptySlots int
	// payloads that were present but could not be decoded
	BadPayloads int
	// entries of a decodable block that could not be decoded
	BadTransactions int
	BadRewards      int
}

// DecodeBatch turns the ok slots of a raw batch into records. Skipped and
// failed slots produce no rows. A payload, transaction or reward that fails
// to decode is counted and dropped on its own; only a batch that is
// inconsistent as a whole is undecodable.
func DecodeBatch(batch *common.RawBatch) (*Records, error) {
	if batch.LastSlot < batch.FirstSlot {
		return nil, fmt.Errorf("%w: last slot %d before first slot %d", ErrUndecodable, batch.LastSlot, batch.FirstSlot)
	}

	records := &Records{}
	for _, raw := range batch.Blocks {
		if !batch.Range().Contains(raw.Slot) {
			return nil, fmt.Errorf("%w: slot %d outside batch range %s", ErrUndecodable, raw.Slot, batch.Range())
		}
		if raw.Status != common.SlotStatusOK || len(raw.Block) == 0 || bytes.Equal(raw.Block, []byte("null")) {
			records.EmptySlots++
			continue
		}

		var blk solanaBlock
		if err := json.Unmarshal(raw.Block, &blk); err != nil {
			records.BadPayloads++
			continue
		}
		records.Blocks = append(records.Blocks, toBlockRecord(raw, &blk))
		for i, data := range blk.Transactions {
			var tx solanaTransaction
			if err := json.Unmarshal(data, &tx); err != nil {
				records.BadTransactions++
				continue
			}
			records.Transactions = append(records.Transactions, toTransactionRecord(raw.Slot, blk.BlockTime, i, &tx))
		}
		for i, data := range blk.Rewards {
			var r solanaReward
			if err := json.Unmarshal(data, &r); err != nil {
				records.BadRewards++
				continue
			}
			records.Rewards = append(records.Rewards, toRewardRecord(raw.Slot, blk.BlockTime, i, &r))
		}
	}
	return records, nil
}

func toBlockRecord(raw common.RawBlock, blk *solanaBlock) common.BlockRecord {
	return common.BlockRecord{
		Slot:              raw.Slot,
		BlockHash:         blk.Blockhash,
		PreviousBlockHash: blk.PreviousBlockhash,
		ParentSlot:        blk.ParentSlot,
		BlockHeight:       blk.BlockHeight,
		BlockTime:         blk.BlockTime,
		TransactionCount:  int32(len(blk.Transactions)),
		RewardCount:       int32(len(blk.Rewards)),
		CollectedAt:       raw.CollectedAt,
	}
}

func toTransactionRecord(slot uint64, blockTime *int64, index int, tx *solanaTransaction) common.TransactionRecord {
	msg := &tx.Transaction.Message
	record := common.TransactionRecord{
		Slot:             slot,
		BlockTime:        blockTime,
		TransactionIndex: int32(index),
		Version:          transactionVersion(tx.Version),
		AccountCount:     int32(len(msg.AccountKeys)),
		Signatures:       tx.Transaction.Signatures,
		RecentBlockhash:  msg.RecentBlockhash,
		AccountKeys:      toAccountKeys(msg.AccountKeys, msg.Header),
		Instructions:     toInstructions(msg.Instructions),
	}
	if len(tx.Transaction.Signatures) > 0 {
		record.Signature = tx.Transaction.Signatures[0]
	}
	if len(msg.AccountKeys) > 0 {
		record.FeePayer = msg.AccountKeys[0].Pubkey
	}
	if msg.Header != nil {
		record.Header = common.MessageHeader(*msg.Header)
	}
	if meta := tx.Meta; meta != nil {
		record.Fee = meta.Fee
		record.ComputeUnitsConsumed = meta.ComputeUnitsConsumed
		record.LogMessageCount = int32(len(meta.LogMessages))
		record.LogMessages = meta.LogMessages
		record.Err = transactionError(meta.Err)
		record.Success = record.Err == ""
		record.PreBalances = meta.PreBalances
		record.PostBalances = meta.PostBalances
		record.PreTokenBalances = toTokenBalances(meta.PreTokenBalances)
		record.PostTokenBalances = toTokenBalances(meta.PostTokenBalances)
		for _, inner := range meta.InnerInstructions {
			record.InnerInstructions = append(record.InnerInstructions, common.InnerInstructions{
				Index:        inner.Index,
				Instructions: toInstructions(inner.Instructions),
			})
		}
	}
	return record
}

// toAccountKeys fills signer and writable from the message header when the
// node only sent bare pubkeys. Keys past the static list come from lookup
// tables and are left unflagged.
func toAccountKeys(keys []accountKey, header *solanaHeader) []common.AccountKey {
	if len(keys) == 0 {
		return nil
	}
	out := make([]common.AccountKey, len(keys))
	for i, k := range keys {
		out[i] = common.AccountKey{Pubkey: k.Pubkey, Signer: k.Signer, Writable: k.Writable, Source: k.Source}
		if k.flagged || header == nil {
			continue
		}
		signed := int(header.NumRequiredSignatures)
		if i < signed {
			out[i].Signer = true
			out[i].Writable = i < signed-int(header.NumReadonlySignedAccounts)
		} else {
			out[i].Writable = i < len(keys)-int(header.NumReadonlyUnsignedAccounts)
		}
	}
	return out
}

func toInstructions(in []solanaInstruction) []common.Instruction {
	if len(in) == 0 {
		return nil
	}
	out := make([]common.Instruction, len(in))
	for i, ix := range in {
		out[i] = common.Instruction{
			InstructionIndex: int32(i),
			ProgramIDIndex:   ix.ProgramIDIndex,
			ProgramID:        ix.ProgramID,
			Program:          ix.Program,
			Data:             ix.Data,
			Parsed:           compactJSON(ix.Parsed),
			StackHeight:      ix.StackHeight,
		}
		if len(ix.Accounts) > 0 {
			out[i].Accounts = make([]string, len(ix.Accounts))
			for j, a := range ix.Accounts {
				out[i].Accounts[j] = string(a)
			}
		}
	}
	return out
}

func toTokenBalances(in []tokenBalance) []common.TokenBalance {
	if len(in) == 0 {
		return nil
	}
	out := make([]common.TokenBalance, len(in))
	for i, b := range in {
		out[i] = common.TokenBalance{
			AccountIndex:   b.AccountIndex,
			Mint:           b.Mint,
			Owner:          b.Owner,
			ProgramID:      b.ProgramID,
			Amount:         b.UITokenAmount.Amount,
			Decimals:       b.UITokenAmount.Decimals,
			UIAmountString: b.UITokenAmount.UIAmountString,
		}
	}
	return out
}

func toRewardRecord(slot uint64, blockTime *int64, index int, r *solanaReward) common.RewardRecord {
	record := common.RewardRecord{
		Slot:        slot,
		BlockTime:   blockTime,
		RewardIndex: int32(index),
		Pubkey:      r.Pubkey,
		Lamports:    r.Lamports,
		PostBalance: r.PostBalance,
		Commission:  r.Commission,
	}
	if r.RewardType != nil {
		record.RewardType = *r.RewardType
	}
	return record
}

// transactionVersion renders "legacy" and numeric versions alike.
func transactionVersion(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s
	}
	return string(raw)
}

func transactionError(raw json.RawMessage) string {
	return compactJSON(raw)
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
