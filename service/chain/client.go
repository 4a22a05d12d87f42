package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	eth "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"github.com/dropworks/pooldrop/service/common"
	"github.com/dropworks/pooldrop/service/config"
	"github.com/dropworks/pooldrop/service/errors"
)

// RPC is the subset of an Ethereum JSON-RPC client this service uses.
// Satisfied by *ethclient.Client.
type RPC interface {
	PendingNonceAt(ctx context.Context, account eth.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client builds the unsigned pool drop calls and answers token metadata
// queries. One instance serves all configured networks; connections are dialed
// lazily per network.
type Client struct {
	cfg  *config.Config
	dial func(url string) (RPC, error)

	mu        sync.Mutex
	conns     map[string]RPC
	decimals  map[string]int32
	contracts map[string]common.EthAddress
	rpcURLs   map[string]string
}

func NewClient(cfg *config.Config) *Client {
	return newClient(cfg, func(url string) (RPC, error) {
		return ethclient.Dial(url)
	})
}

func newClient(cfg *config.Config, dial func(url string) (RPC, error)) *Client {
	contracts := make(map[string]common.EthAddress)
	for network, address := range cfg.ContractAddresses() {
		contracts[network] = common.EthAddressFromString(address)
	}
	return &Client{
		cfg:       cfg,
		dial:      dial,
		conns:     make(map[string]RPC),
		decimals:  make(map[string]int32),
		contracts: contracts,
		rpcURLs:   cfg.RPCURLs(),
	}
}

func (c *Client) contract(network string) (common.EthAddress, error) {
	address, ok := c.contracts[network]
	if !ok || address.IsZero() {
		return common.EthAddress{}, fmt.Errorf("%w: %s", errors.ErrNoContractForNetwork, network)
	}
	return address, nil
}

func (c *Client) rpc(network string) (RPC, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[network]; ok {
		return conn, nil
	}

	url, ok := c.rpcURLs[network]
	if !ok {
		return nil, errors.Chain("dial", fmt.Errorf("no RPC endpoint configured for network %s", network))
	}

	conn, err := c.dial(url)
	if err != nil {
		return nil, errors.Chain("dial", err)
	}

	c.conns[network] = conn
	return conn, nil
}

// DecimalsOf returns the decimal precision of a token, memoized per
// (network, token) for the process lifetime. Decimals are immutable contract
// constants so the cache is never invalidated; a duplicate concurrent
// population resolves to the same value and is harmless.
func (c *Client) DecimalsOf(ctx context.Context, network string, token common.EthAddress) (int32, error) {
	key := network + ":" + token.String()

	c.mu.Lock()
	cached, ok := c.decimals[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	conn, err := c.rpc(network)
	if err != nil {
		return 0, err
	}

	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}

	tokenAddress := eth.Address(token)
	out, err := conn.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return 0, errors.Chain("read token decimals", err)
	}

	values, err := erc20ABI.Unpack("decimals", out)
	if err != nil {
		return 0, errors.Chain("read token decimals", err)
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, errors.Chain("read token decimals", fmt.Errorf("unexpected decimals result: %v", values))
	}

	c.mu.Lock()
	c.decimals[key] = int32(d)
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"network":  network,
		"token":    token.String(),
		"decimals": d,
	}).Debug("Cached token decimals")

	return int32(d), nil
}
