package types

import "encoding/json"

// Event type names written into the notify_type field.
const (
	EventTransfer = "transfer"
	EventRefund   = "refund"
	EventMint     = "mint"
	EventBurn     = "burn"
)

// NotificationRecord is the persisted, denormalised form of one contract
// notification. The same record is written once per index bucket it
// belongs to.
type NotificationRecord struct {
	Contract   string  `json:"contract"`
	Block      uint32  `json:"block"`
	Tx         string  `json:"tx"`
	Index      uint32  `json:"index"`
	NotifyType string  `json:"notify_type"`
	AddrFrom   *string `json:"addr_from,omitempty"`
	AddrTo     string  `json:"addr_to,omitempty"`
	Amount     string  `json:"amount,omitempty"`
	Asset      *string `json:"asset,omitempty"`
	// State holds the raw notification payload of generic events as a
	// ContractParameter.
	State json.RawMessage `json:"state,omitempty"`
}

// TokenInfo holds the metadata read from a token contract.
type TokenInfo struct {
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Decimals        int64  `json:"decimals"`
	ScriptHash      string `json:"script_hash"`
	ContractAddress string `json:"contract_address"`
}

// TokenDescriptor is the persisted record of a contract detected as a
// token, along with where it was first seen.
type TokenDescriptor struct {
	Block    uint32                 `json:"block"`
	Tx       string                 `json:"tx"`
	Token    TokenInfo              `json:"token"`
	Contract map[string]interface{} `json:"contract"`
}
