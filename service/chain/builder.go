package chain

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum"
	eth "github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/dropworks/pooldrop/service/common"
	"github.com/dropworks/pooldrop/service/errors"
)

// BuildPoolDrop constructs the ordered pair of unsigned calls that execute a
// pool drop: an ERC-20 approval on the token contract followed by a
// transferManyFrom on the distribution contract. The caller must submit them
// in that order; they share one fetched pending nonce, the approval taking
// nonce and the distribute call nonce+1.
func (c *Client) BuildPoolDrop(ctx context.Context, req BuildRequest) ([]CallRequest, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	contract, err := c.contract(req.Network)
	if err != nil {
		return nil, err
	}

	conn, err := c.rpc(req.Network)
	if err != nil {
		return nil, err
	}

	// Per recipient amount in smallest units, rounded down so repeated
	// transfers can never overrun the deposited total.
	units := req.AmountPerPerson.ToUnits(req.Decimals)
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s is below one smallest unit", errors.ErrInvalidAmount, req.AmountPerPerson)
	}

	recipientCount := len(req.Recipients)

	// Aggregate approval, rounded up. An approval short by even one unit
	// makes the whole batch transfer revert; rounding up guarantees the
	// allowance covers the sum of the floored per recipient transfers.
	fullUnits := req.AmountPerPerson.MulInt(int64(recipientCount)).ToUnitsCeil(req.Decimals)

	approveData, err := erc20ABI.Pack("approve", eth.Address(contract), fullUnits)
	if err != nil {
		return nil, err
	}

	fromAddress := eth.Address(req.From)
	tokenAddress := eth.Address(req.Token)

	// The approval estimates fine against the live chain.
	approveGas, err := conn.EstimateGas(ctx, ethereum.CallMsg{
		From: fromAddress,
		To:   &tokenAddress,
		Data: approveData,
	})
	if err != nil {
		return nil, errors.Chain("estimate approve gas", err)
	}

	recipients := make([]eth.Address, recipientCount)
	for i, r := range req.Recipients {
		recipients[i] = eth.Address(r)
	}

	distributeData, err := poolDropABI.Pack("transferManyFrom", tokenAddress, fromAddress, recipients, units)
	if err != nil {
		return nil, err
	}

	// A live estimate of the distribute call would revert here since the
	// allowance is not approved yet, so its gas is a configured linear
	// formula over the recipient count.
	distributeGas := c.cfg.DistributeGasBase + c.cfg.DistributeGasPerRecipient*uint64(recipientCount)

	nonce, err := conn.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return nil, errors.Chain("fetch pending nonce", err)
	}

	fullAmount := common.AmountFromUnits(fullUnits, req.Decimals)
	perPerson := common.AmountFromUnits(units, req.Decimals)

	log.WithFields(log.Fields{
		"network":    req.Network,
		"recipients": recipientCount,
		"perPerson":  perPerson.String(),
		"fullAmount": fullAmount.String(),
		"nonce":      nonce,
	}).Info("Built pool drop calls")

	return []CallRequest{
		{
			Currency: req.Currency,
			From:     req.From.String(),
			Amount:   "0",
			Contract: req.Token.String(),
			Data:     approveData,
			Gas:      GasInfo{GasPrice: "0", GasLimit: strconv.FormatUint(approveGas, 10)},
			Nonce:    nonce,
			Description: fmt.Sprintf("Approve %s %s to be spent by PoolDrop contract",
				fullAmount, req.Symbol),
		},
		{
			Currency: req.Currency,
			From:     req.From.String(),
			Amount:   "0",
			Contract: contract.String(),
			Data:     distributeData,
			Gas:      GasInfo{GasPrice: "0", GasLimit: strconv.FormatUint(distributeGas, 10)},
			Nonce:    nonce + 1,
			Description: fmt.Sprintf("%s %s to be distributed to %d addresses using PoolDrop contract",
				perPerson, req.Symbol, recipientCount),
		},
	}, nil
}

func (req BuildRequest) validate() error {
	if req.Token.IsZero() {
		return errors.MissingField("token")
	}
	if req.Currency == "" {
		return errors.MissingField("currency")
	}
	if req.Symbol == "" {
		return errors.MissingField("symbol")
	}
	if req.From.IsZero() {
		return errors.MissingField("from")
	}
	if len(req.Recipients) == 0 {
		return errors.MissingField("recipients")
	}
	if !req.AmountPerPerson.IsPositive() {
		return errors.MissingField("amount")
	}
	return nil
}
