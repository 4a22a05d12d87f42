package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The two contract interfaces the service talks to: the standard ERC-20 token
// interface (only the parts used here) and the PoolDrop distribution contract.

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const poolDropABIJSON = `[
	{"constant":false,"inputs":[{"name":"token","type":"address"},{"name":"from","type":"address"},{"name":"to","type":"address[]"},{"name":"amount","type":"uint256"}],"name":"transferManyFrom","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	erc20ABI    = mustParseABI(erc20ABIJSON)
	poolDropABI = mustParseABI(poolDropABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
