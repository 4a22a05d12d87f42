package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dropworks/pooldrop/service/chain"
	"github.com/dropworks/pooldrop/service/common"
	"github.com/dropworks/pooldrop/service/config"
	svcerrors "github.com/dropworks/pooldrop/service/errors"
	"github.com/dropworks/pooldrop/service/transactions"
	"github.com/dropworks/pooldrop/service/wallet"
)

// ChainClient is what the allocator needs from the chain layer.
// Satisfied by *chain.Client.
type ChainClient interface {
	DecimalsOf(ctx context.Context, network string, token common.EthAddress) (int32, error)
	BuildPoolDrop(ctx context.Context, req chain.BuildRequest) ([]chain.CallRequest, error)
}

// App coordinates pool drops: registration, claiming, cancellation and
// execution. All collaborators are injected; there is no ambient lookup.
type App struct {
	cfg    *config.Config
	store  Store
	wallet wallet.Client
	chain  ChainClient
}

func New(cfg *config.Config, store Store, walletClient wallet.Client, chainClient ChainClient) *App {
	return &App{cfg, store, walletClient, chainClient}
}

// CreateParams is a pool drop registration request.
type CreateParams struct {
	Network                      string
	Currency                     string
	Symbol                       string
	TotalAmount                  string
	NumberOfParticipants         int
	ParticipationAmountFormatted string
	CompletedMessage             string
	CompletedLink                string
}

func (p CreateParams) validate() error {
	if p.Network == "" {
		return svcerrors.MissingField("network")
	}
	if p.Currency == "" {
		return svcerrors.MissingField("currency")
	}
	if p.Symbol == "" {
		return svcerrors.MissingField("symbol")
	}
	if p.TotalAmount == "" {
		return svcerrors.MissingField("totalAmount")
	}
	if p.ParticipationAmountFormatted == "" {
		return svcerrors.MissingField("participationAmountFormatted")
	}
	return nil
}

// Create registers a new pool drop for the signed-in creator. The
// participation amount is the total divided by the participant count, rounded
// down to the token's decimal precision so the claims can never overrun the
// deposit.
func (a *App) Create(ctx context.Context, token string, p CreateParams) (*PoolDrop, error) {
	if token == "" {
		return nil, svcerrors.MissingField("token")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	total, err := common.ParseAmount(p.TotalAmount)
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total amount must be greater than zero", svcerrors.ErrInvalidAmount)
	}
	if p.NumberOfParticipants <= 0 {
		return nil, fmt.Errorf("%w: must be greater than zero", svcerrors.ErrInvalidParticipantCount)
	}

	_, tokenAddress, err := common.ParseCurrency(p.Currency)
	if err != nil {
		return nil, err
	}

	profile, err := a.wallet.SignIn(ctx, token)
	if err != nil {
		return nil, err
	}

	address := profile.AddressFor(p.Currency)
	if address == "" {
		return nil, fmt.Errorf("no address was found for %s", p.Symbol)
	}

	decimals, err := a.chain.DecimalsOf(ctx, p.Network, tokenAddress)
	if err != nil {
		return nil, err
	}

	participation, err := total.DivideFloor(int64(p.NumberOfParticipants), decimals)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("%s is distributing %s %s to %d lucky individuals",
		profile.DisplayName, p.ParticipationAmountFormatted, p.Symbol, p.NumberOfParticipants)

	linkID, err := a.wallet.CreateLink(ctx, token, wallet.LinkRequest{
		ImageTopTitle:   "POOL DROP",
		ImageMainLine:   p.ParticipationAmountFormatted,
		ImageSecondLine: p.Symbol,
		Message:         message,
		Currency:        p.Currency,
	})
	if err != nil {
		return nil, err
	}

	pd := &PoolDrop{
		ID:                           linkID,
		Version:                      0,
		CreatorID:                    profile.UserID,
		CreatorAddress:               common.EthAddressFromString(address),
		DisplayName:                  profile.DisplayName,
		Network:                      p.Network,
		Currency:                     p.Currency,
		Symbol:                       p.Symbol,
		TotalAmount:                  total,
		NumberOfParticipants:         p.NumberOfParticipants,
		ParticipationAmount:          participation,
		ParticipationAmountFormatted: p.ParticipationAmountFormatted,
		Claims:                       ClaimList{},
		CompletedMessage:             p.CompletedMessage,
		CompletedLink:                p.CompletedLink,
	}

	if err := pd.Validate(); err != nil {
		return nil, err
	}

	if err := a.store.InsertPoolDrop(pd); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"id":            pd.ID,
		"creator":       pd.CreatorID,
		"currency":      pd.Currency,
		"totalAmount":   pd.TotalAmount.String(),
		"participants":  pd.NumberOfParticipants,
		"participation": pd.ParticipationAmount.String(),
	}).Info("Pool drop created")

	return pd, nil
}

// Claim reserves one share of the drop for the signed-in user. Contention on
// the last slots is resolved by optimistic retry: on a version conflict the
// whole operation re-runs from a fresh read, so fullness and duplicates are
// always re-validated against current state. At most NumberOfParticipants
// claims can ever commit.
func (a *App) Claim(ctx context.Context, token, linkID string) (*PoolDrop, error) {
	if token == "" {
		return nil, svcerrors.MissingField("token")
	}
	if linkID == "" {
		return nil, svcerrors.MissingField("linkId")
	}

	profile, err := a.wallet.SignIn(ctx, token)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= a.cfg.UpdateRetryCount; attempt++ {
		pd, err := a.store.GetPoolDrop(linkID)
		if err != nil {
			return nil, err
		}

		address := profile.AddressFor(pd.Currency)
		if address == "" {
			return nil, fmt.Errorf("no address was found for %s", pd.Symbol)
		}

		claim := Claim{
			Address: common.EthAddressFromString(address),
			UserID:  profile.UserID,
		}

		if err := pd.AddClaim(claim); err != nil {
			return nil, err
		}

		err = a.store.UpdatePoolDrop(pd, pd.Version)
		if errors.Is(err, svcerrors.ErrVersionConflict) {
			log.WithFields(log.Fields{
				"id":      linkID,
				"user":    profile.UserID,
				"attempt": attempt + 1,
			}).Debug("Claim lost an update race, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{
			"id":     linkID,
			"user":   profile.UserID,
			"claims": len(pd.Claims),
		}).Info("Claim committed")

		return pd, nil
	}

	return nil, svcerrors.ErrVersionConflict
}

// Cancel moves the drop to the cancelled terminal state. Creator only;
// blocked once executed.
func (a *App) Cancel(ctx context.Context, token, linkID string) (*PoolDrop, error) {
	if token == "" {
		return nil, svcerrors.MissingField("token")
	}
	if linkID == "" {
		return nil, svcerrors.MissingField("linkId")
	}

	profile, err := a.wallet.SignIn(ctx, token)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= a.cfg.UpdateRetryCount; attempt++ {
		pd, err := a.store.GetPoolDrop(linkID)
		if err != nil {
			return nil, err
		}

		if pd.CreatorID != profile.UserID {
			return nil, svcerrors.ErrNotCreator
		}

		if err := pd.SetCancelled(); err != nil {
			return nil, err
		}

		err = a.store.UpdatePoolDrop(pd, pd.Version)
		if errors.Is(err, svcerrors.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{"id": linkID}).Info("Pool drop cancelled")

		return pd, nil
	}

	return nil, svcerrors.ErrVersionConflict
}

// Execute builds the approval and distribution calls for the claimed drop,
// marks the record executed and hands the calls to the external signing
// service. Returns the signing request identifier.
//
// The record is marked executed before the signing service is contacted. If
// that submission fails the executed flag deliberately stays set: this
// process cannot know whether anything was signed, and an automatic rollback
// would invite a double distribution. Operators reconcile manually; callers
// are warned before resubmitting.
func (a *App) Execute(ctx context.Context, token, linkID string) (string, error) {
	if token == "" {
		return "", svcerrors.MissingField("token")
	}
	if linkID == "" {
		return "", svcerrors.MissingField("linkId")
	}

	profile, err := a.wallet.SignIn(ctx, token)
	if err != nil {
		return "", err
	}

	var pd *PoolDrop
	var calls []chain.CallRequest

	for attempt := 0; ; attempt++ {
		pd, err = a.store.GetPoolDrop(linkID)
		if err != nil {
			return "", err
		}

		if pd.CreatorID != profile.UserID {
			return "", svcerrors.ErrNotCreator
		}

		// Build from the same snapshot the conditional update guards: a
		// claim racing in between would change the recipient list, so a
		// conflict restarts from a fresh read and a fresh build.
		calls, err = a.buildCalls(ctx, pd)
		if err != nil {
			return "", err
		}

		if err := pd.SetExecuted(); err != nil {
			return "", err
		}

		err = a.store.UpdatePoolDrop(pd, pd.Version)
		if errors.Is(err, svcerrors.ErrVersionConflict) {
			if attempt >= a.cfg.UpdateRetryCount {
				return "", svcerrors.ErrVersionConflict
			}
			continue
		}
		if err != nil {
			return "", err
		}
		break
	}

	request, err := transactions.NewSigningRequest(pd.ID, calls)
	if err != nil {
		return "", err
	}
	if err := a.store.InsertSigningRequest(request); err != nil {
		return "", err
	}

	requestID, err := a.wallet.RequestSignature(ctx, pd.CreatorID, calls)
	if err != nil {
		request.MarkFailed(err)
		if saveErr := a.store.UpdateSigningRequest(request); saveErr != nil {
			log.WithFields(log.Fields{"id": pd.ID, "error": saveErr}).
				Warn("Could not record signing request failure")
		}
		log.WithFields(log.Fields{"id": pd.ID, "error": err}).
			Warn("Signing submission failed after record was marked executed; manual reconciliation required")
		return "", err
	}

	request.MarkSent(requestID)
	if err := a.store.UpdateSigningRequest(request); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"id":         pd.ID,
		"requestId":  requestID,
		"recipients": len(pd.Claims),
	}).Info("Pool drop execution submitted for signing")

	return requestID, nil
}

func (a *App) buildCalls(ctx context.Context, pd *PoolDrop) ([]chain.CallRequest, error) {
	_, tokenAddress, err := common.ParseCurrency(pd.Currency)
	if err != nil {
		return nil, err
	}

	decimals, err := a.chain.DecimalsOf(ctx, pd.Network, tokenAddress)
	if err != nil {
		return nil, err
	}

	return a.chain.BuildPoolDrop(ctx, chain.BuildRequest{
		Network:         pd.Network,
		Currency:        pd.Currency,
		Symbol:          pd.Symbol,
		Token:           tokenAddress,
		From:            pd.CreatorAddress,
		Recipients:      pd.ClaimAddresses(),
		AmountPerPerson: pd.ParticipationAmount,
		Decimals:        decimals,
	})
}

// AttachTransactionIDs records the chain transaction ids reported back by the
// signing callback and closes out the drop.
func (a *App) AttachTransactionIDs(ctx context.Context, linkID string, transactionIDs []string) (*PoolDrop, error) {
	if linkID == "" {
		return nil, svcerrors.MissingField("linkId")
	}
	if len(transactionIDs) == 0 {
		return nil, svcerrors.MissingField("transactionIds")
	}

	var pd *PoolDrop

	for attempt := 0; ; attempt++ {
		var err error
		pd, err = a.store.GetPoolDrop(linkID)
		if err != nil {
			return nil, err
		}

		if err := pd.AddTransactionIDs(transactionIDs); err != nil {
			return nil, err
		}

		err = a.store.UpdatePoolDrop(pd, pd.Version)
		if errors.Is(err, svcerrors.ErrVersionConflict) {
			if attempt >= a.cfg.UpdateRetryCount {
				return nil, svcerrors.ErrVersionConflict
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	if request, err := a.store.LatestSigningRequest(pd.ID); err == nil {
		request.MarkComplete(transactionIDs)
		if err := a.store.UpdateSigningRequest(request); err != nil {
			log.WithFields(log.Fields{"id": pd.ID, "error": err}).
				Warn("Could not mark signing request complete")
		}
	}

	log.WithFields(log.Fields{
		"id":           pd.ID,
		"transactions": pd.TransactionIDs,
	}).Info("Pool drop closed out")

	return pd, nil
}

// Get returns the current pool drop record.
func (a *App) Get(ctx context.Context, linkID string) (*PoolDrop, error) {
	if linkID == "" {
		return nil, svcerrors.MissingField("linkId")
	}
	return a.store.GetPoolDrop(linkID)
}

// ListActive returns ids of the signed-in creator's drops that are neither
// cancelled nor executed, optionally filtered by currency.
func (a *App) ListActive(ctx context.Context, token, currency string) ([]string, error) {
	if token == "" {
		return nil, svcerrors.MissingField("token")
	}

	profile, err := a.wallet.SignIn(ctx, token)
	if err != nil {
		return nil, err
	}

	return a.store.ListActivePoolDrops(profile.UserID, currency)
}
