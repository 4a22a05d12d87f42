package transactions

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dropworks/pooldrop/service/chain"
	"github.com/dropworks/pooldrop/service/common"
)

// SigningRequest is the audit record of one execution attempt: the unsigned
// calls handed to the external signing service and what became of them.
type SigningRequest struct {
	gorm.Model
	ID uuid.UUID `gorm:"column:id;primary_key;type:uuid;"`

	PoolDropID string                     `gorm:"column:pool_drop_id;index"`
	State      common.SigningRequestState `gorm:"column:state;not null;default:null;index"`
	Error      string                     `gorm:"column:error"`
	RequestID  string                     `gorm:"column:request_id"` // id assigned by the signing service

	Calls          datatypes.JSON    `gorm:"column:calls"`
	TransactionIDs common.StringList `gorm:"column:transaction_ids"`
}

func NewSigningRequest(poolDropID string, calls []chain.CallRequest) (*SigningRequest, error) {
	callsJSON, err := json.Marshal(calls)
	if err != nil {
		return nil, err
	}

	request := SigningRequest{
		PoolDropID: poolDropID,
		State:      common.SigningRequestStateInit,
		Calls:      callsJSON,
	}

	return &request, nil
}

func (t *SigningRequest) CallRequests() ([]chain.CallRequest, error) {
	calls := []chain.CallRequest{}
	if err := json.Unmarshal(t.Calls, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

// MarkSent records the signing service's identifier after a successful
// submission.
func (t *SigningRequest) MarkSent(requestID string) {
	t.RequestID = requestID
	t.State = common.SigningRequestStateSent
	t.Error = ""
}

// MarkComplete records the transaction ids reported back once the calls were
// signed and submitted on chain.
func (t *SigningRequest) MarkComplete(transactionIDs []string) {
	t.TransactionIDs = t.TransactionIDs.Merge(transactionIDs)
	t.State = common.SigningRequestStateComplete
	t.Error = ""
}

func (t *SigningRequest) MarkFailed(err error) {
	t.State = common.SigningRequestStateFailed
	if err != nil {
		t.Error = err.Error()
	}
}
