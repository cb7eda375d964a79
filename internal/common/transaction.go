package common

type TransactionRecord struct {
	Slot                 uint64  `parquet:"slot" json:"slot"`
	BlockTime            *int64  `parquet:"block_time,optional" json:"block_time"`
	TransactionIndex     int32   `parquet:"transaction_index" json:"transaction_index"`
	Signature            string  `parquet:"signature" json:"signature"`
	Version              string  `parquet:"version" json:"version"`
	Fee                  uint64  `parquet:"fee" json:"fee"`
	Success              bool    `parquet:"success" json:"success"`
	Err                  string  `parquet:"err" json:"err"`
	ComputeUnitsConsumed *uint64 `parquet:"compute_units_consumed,optional" json:"compute_units_consumed"`
	FeePayer             string  `parquet:"fee_payer" json:"fee_payer"`
	AccountCount         int32   `parquet:"account_count" json:"account_count"`
	LogMessageCount      int32   `parquet:"log_message_count" json:"log_message_count"`

	Signatures        []string            `parquet:"signatures,list" json:"signatures"`
	RecentBlockhash   string              `parquet:"recent_blockhash" json:"recent_blockhash"`
	Header            MessageHeader       `parquet:"header" json:"header"`
	AccountKeys       []AccountKey        `parquet:"account_keys,list" json:"account_keys"`
	Instructions      []Instruction       `parquet:"instructions,list" json:"instructions"`
	InnerInstructions []InnerInstructions `parquet:"inner_instructions,list" json:"inner_instructions"`
	PreBalances       []uint64            `parquet:"pre_balances,list" json:"pre_balances"`
	PostBalances      []uint64            `parquet:"post_balances,list" json:"post_balances"`
	PreTokenBalances  []TokenBalance      `parquet:"pre_token_balances,list" json:"pre_token_balances"`
	PostTokenBalances []TokenBalance      `parquet:"post_token_balances,list" json:"post_token_balances"`
	LogMessages       []string            `parquet:"log_messages,list" json:"log_messages"`
}

type MessageHeader struct {
	NumRequiredSignatures       int32 `parquet:"num_required_signatures" json:"num_required_signatures"`
	NumReadonlySignedAccounts   int32 `parquet:"num_readonly_signed_accounts" json:"num_readonly_signed_accounts"`
	NumReadonlyUnsignedAccounts int32 `parquet:"num_readonly_unsigned_accounts" json:"num_readonly_unsigned_accounts"`
}

type AccountKey struct {
	Pubkey   string `parquet:"pubkey" json:"pubkey"`
	Signer   bool   `parquet:"signer" json:"signer"`
	Writable bool   `parquet:"writable" json:"writable"`
	// "transaction" or "lookupTable", empty when the node did not say
	Source string `parquet:"source" json:"source"`
}

// Instruction is one top level or inner instruction. Accounts holds pubkeys
// for jsonParsed payloads and account indexes rendered as text otherwise.
// Parsed is the compact json of the parsed instruction, if any.
type Instruction struct {
	InstructionIndex int32    `parquet:"instruction_index" json:"instruction_index"`
	ProgramIDIndex   *int32   `parquet:"program_id_index,optional" json:"program_id_index"`
	ProgramID        string   `parquet:"program_id" json:"program_id"`
	Program          string   `parquet:"program" json:"program"`
	Data             string   `parquet:"data" json:"data"`
	Accounts         []string `parquet:"accounts,list" json:"accounts"`
	Parsed           string   `parquet:"parsed" json:"parsed"`
	StackHeight      *int32   `parquet:"stack_height,optional" json:"stack_height"`
}

type InnerInstructions struct {
	Index        int32         `parquet:"index" json:"index"`
	Instructions []Instruction `parquet:"instructions,list" json:"instructions"`
}

type TokenBalance struct {
	AccountIndex   int32  `parquet:"account_index" json:"account_index"`
	Mint           string `parquet:"mint" json:"mint"`
	Owner          string `parquet:"owner" json:"owner"`
	ProgramID      string `parquet:"program_id" json:"program_id"`
	Amount         string `parquet:"amount" json:"amount"`
	Decimals       int32  `parquet:"decimals" json:"decimals"`
	UIAmountString string `parquet:"ui_amount_string" json:"ui_amount_string"`
}

func (t TransactionRecord) RowSlot() uint64      { return t.Slot }
func (t TransactionRecord) RowBlockTime() *int64 { return t.BlockTime }
