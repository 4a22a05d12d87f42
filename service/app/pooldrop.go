package app

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dropworks/pooldrop/service/common"
	"github.com/dropworks/pooldrop/service/errors"
)

// Claim is a participant's reservation of one share of a pool drop.
type Claim struct {
	Address common.EthAddress `json:"address"`
	UserID  string            `json:"userId"`
}

// ClaimList is stored as a JSON document in a single column so that a claim
// append travels in the same conditional update as the version bump.
// Insertion order is claim order and is preserved.
type ClaimList []Claim

func (ClaimList) GormDataType() string {
	return "text"
}

func (l *ClaimList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("failed to unmarshal ClaimList value: %v", value)
	}
	if len(raw) == 0 {
		*l = ClaimList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

func (l ClaimList) Value() (driver.Value, error) {
	if l == nil {
		l = ClaimList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// PoolDrop is one creator funded, fixed participant count token giveaway.
//
// Version is the optimistic concurrency token: every mutation must supply the
// version it read and the store increments it by exactly one on commit.
// Identity and amount fields are fixed at creation; only claims, the two
// one-way flags and the transaction id set ever change.
type PoolDrop struct {
	gorm.Model
	ID string `gorm:"column:id;primary_key"`

	Version uint64 `gorm:"column:version"`

	CreatorID      string            `gorm:"column:creator_id;index"`
	CreatorAddress common.EthAddress `gorm:"column:creator_address"`
	DisplayName    string            `gorm:"column:display_name"`
	Network        string            `gorm:"column:network"`
	Currency       string            `gorm:"column:currency;index"`
	Symbol         string            `gorm:"column:symbol"`

	TotalAmount                  common.Amount `gorm:"column:total_amount"`
	NumberOfParticipants         int           `gorm:"column:number_of_participants"`
	ParticipationAmount          common.Amount `gorm:"column:participation_amount"`
	ParticipationAmountFormatted string        `gorm:"column:participation_amount_formatted"`

	Claims    ClaimList `gorm:"column:claims"`
	Cancelled bool      `gorm:"column:cancelled"`
	Executed  bool      `gorm:"column:executed"`

	TransactionIDs common.StringList `gorm:"column:transaction_ids"`

	CompletedMessage string `gorm:"column:completed_message"`
	CompletedLink    string `gorm:"column:completed_link"`
}

func (PoolDrop) TableName() string {
	return "pool_drops"
}

func (pd *PoolDrop) BeforeCreate(tx *gorm.DB) (err error) {
	if pd.ID == "" {
		pd.ID = uuid.NewString()
	}
	return nil
}

func (pd *PoolDrop) State() common.PoolDropState {
	switch {
	case pd.Executed:
		return common.PoolDropStateExecuted
	case pd.Cancelled:
		return common.PoolDropStateCancelled
	case len(pd.Claims) >= pd.NumberOfParticipants:
		return common.PoolDropStateFull
	}
	return common.PoolDropStateOpen
}

// AddClaim appends a claim if the drop is still open and the identity has not
// claimed before. The duplicate check covers both userId and address, which
// is what makes a retried claim after a version conflict a no-op.
func (pd *PoolDrop) AddClaim(claim Claim) error {
	if pd.Cancelled {
		return errors.ErrAlreadyCancelled
	}
	if pd.Executed {
		return errors.ErrAlreadyExecuted
	}
	for _, c := range pd.Claims {
		if c.UserID == claim.UserID || c.Address == claim.Address {
			return errors.ErrDuplicateClaim
		}
	}
	if len(pd.Claims) >= pd.NumberOfParticipants {
		return errors.ErrPoolDropFull
	}
	pd.Claims = append(pd.Claims, claim)
	return nil
}

// SetCancelled transitions to the cancelled terminal state. Blocked once
// executed; the two flags are mutually exclusive.
func (pd *PoolDrop) SetCancelled() error {
	if pd.Executed {
		return errors.ErrAlreadyExecuted
	}
	if pd.Cancelled {
		return errors.ErrAlreadyCancelled
	}
	pd.Cancelled = true
	return nil
}

// SetExecuted transitions to the executed terminal state. Requires at least
// one claim to distribute to.
func (pd *PoolDrop) SetExecuted() error {
	if pd.Cancelled {
		return errors.ErrAlreadyCancelled
	}
	if pd.Executed {
		return errors.ErrAlreadyExecuted
	}
	if len(pd.Claims) == 0 {
		return fmt.Errorf("pool drop %s has no claims to distribute to", pd.ID)
	}
	pd.Executed = true
	return nil
}

// AddTransactionIDs records the chain transaction ids reported back after
// execution, deduplicated against prior entries.
func (pd *PoolDrop) AddTransactionIDs(ids []string) error {
	if !pd.Executed {
		return fmt.Errorf("pool drop %s is not executed, refusing to attach transaction ids", pd.ID)
	}
	pd.TransactionIDs = pd.TransactionIDs.Merge(ids)
	return nil
}

// ClaimAddresses returns the claimed addresses in claim order.
func (pd *PoolDrop) ClaimAddresses() []common.EthAddress {
	addresses := make([]common.EthAddress, len(pd.Claims))
	for i, c := range pd.Claims {
		addresses[i] = c.Address
	}
	return addresses
}

func (pd PoolDrop) Validate() error {
	if pd.CreatorID == "" {
		return errors.MissingField("creatorId")
	}
	if pd.CreatorAddress.IsZero() {
		return errors.MissingField("creatorAddress")
	}
	if pd.Network == "" {
		return errors.MissingField("network")
	}
	if pd.Currency == "" {
		return errors.MissingField("currency")
	}
	if pd.Symbol == "" {
		return errors.MissingField("symbol")
	}
	if !pd.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: total amount must be greater than zero", errors.ErrInvalidAmount)
	}
	if pd.NumberOfParticipants <= 0 {
		return fmt.Errorf("%w: must be greater than zero", errors.ErrInvalidParticipantCount)
	}
	if !pd.ParticipationAmount.IsPositive() {
		return fmt.Errorf("%w: participation amount must be greater than zero", errors.ErrInvalidAmount)
	}
	return nil
}
