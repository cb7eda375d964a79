package rpc

const (
	MethodGetBlock  = "getBlock"
	MethodGetSlot   = "getSlot"
	MethodGetHealth = "getHealth"
)

type getBlockConfig struct {
	Encoding                       string `json:"encoding"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	Rewards                        bool   `json:"rewards"`
	TransactionDetails             string `json:"transactionDetails"`
	Commitment                     string `json:"commitment,omitempty"`
}

type commitmentConfig struct {
	Commitment string `json:"commitment,omitempty"`
}

func GetBlockParams(slot uint64, commitment string) []interface{} {
	return []interface{}{slot, getBlockConfig{
		Encoding:                       "jsonParsed",
		MaxSupportedTransactionVersion: 0,
		Rewards:                        true,
		TransactionDetails:             "full",
		Commitment:                     commitment,
	}}
}

func GetSlotParams(commitment string) []interface{} {
	return []interface{}{commitmentConfig{Commitment: commitment}}
}
