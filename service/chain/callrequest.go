package chain

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dropworks/pooldrop/service/common"
)

// CallRequest is a fully specified but unsigned contract call, handed to the
// external signing service. The wire shape is fixed by that service.
type CallRequest struct {
	Currency    string        `json:"currency"`
	From        string        `json:"from"`
	Amount      string        `json:"amount"`
	Contract    string        `json:"contract"`
	Data        hexutil.Bytes `json:"data"`
	Gas         GasInfo       `json:"gas"`
	Nonce       uint64        `json:"nonce"`
	Description string        `json:"description"`
}

type GasInfo struct {
	GasPrice string `json:"gasPrice"`
	GasLimit string `json:"gasLimit"`
}

// BuildRequest carries everything the builder needs from a finalized pool
// drop record.
type BuildRequest struct {
	Network         string
	Currency        string
	Symbol          string
	Token           common.EthAddress
	From            common.EthAddress
	Recipients      []common.EthAddress
	AmountPerPerson common.Amount
	Decimals        int32
}
