package http

import (
	"github.com/dropworks/pooldrop/service/app"
)

type ReqCreatePoolDrop struct {
	Network                      string `json:"network"`
	Currency                     string `json:"currency"`
	Symbol                       string `json:"symbol"`
	TotalAmount                  string `json:"totalAmount"`
	NumberOfParticipants         int    `json:"numberOfParticipants"`
	ParticipationAmountFormatted string `json:"participationAmountFormatted"`
	CompletedMessage             string `json:"completedMessage,omitempty"`
	CompletedLink                string `json:"completedLink,omitempty"`
}

func (d ReqCreatePoolDrop) ToApp() app.CreateParams {
	return app.CreateParams{
		Network:                      d.Network,
		Currency:                     d.Currency,
		Symbol:                       d.Symbol,
		TotalAmount:                  d.TotalAmount,
		NumberOfParticipants:         d.NumberOfParticipants,
		ParticipationAmountFormatted: d.ParticipationAmountFormatted,
		CompletedMessage:             d.CompletedMessage,
		CompletedLink:                d.CompletedLink,
	}
}

type ReqClaimPoolDrop struct {
	Token string `json:"token"`
}

type ReqExecutePoolDrop struct {
	Token string `json:"token"`
}

type ReqAttachTransactions struct {
	TransactionIDs []string `json:"transactionIds"`
}

type ResClaim struct {
	Address string `json:"address"`
	UserID  string `json:"userId"`
}

type ResPoolDrop struct {
	ID                           string     `json:"id"`
	Version                      uint64     `json:"version"`
	CreatedAt                    int64      `json:"createdAt"`
	CreatorID                    string     `json:"creatorId"`
	CreatorAddress               string     `json:"creatorAddress"`
	DisplayName                  string     `json:"displayName"`
	Network                      string     `json:"network"`
	Currency                     string     `json:"currency"`
	Symbol                       string     `json:"symbol"`
	TotalAmount                  string     `json:"totalAmount"`
	NumberOfParticipants         int        `json:"numberOfParticipants"`
	ParticipationAmount          string     `json:"participationAmount"`
	ParticipationAmountFormatted string     `json:"participationAmountFormatted"`
	Claims                       []ResClaim `json:"claims"`
	Cancelled                    bool       `json:"cancelled"`
	Executed                     bool       `json:"executed"`
	TransactionIDs               []string   `json:"transactionIds"`
	CompletedMessage             string     `json:"completedMessage,omitempty"`
	CompletedLink                string     `json:"completedLink,omitempty"`
}

type ResExecutePoolDrop struct {
	RequestID string `json:"requestId"`
	Caution   string `json:"caution"`
}

type ResListActivePoolDrops struct {
	PoolDropIDs []string `json:"poolDropIds"`
}

func ResPoolDropFromApp(pd *app.PoolDrop) ResPoolDrop {
	claims := make([]ResClaim, len(pd.Claims))
	for i, c := range pd.Claims {
		claims[i] = ResClaim{
			Address: c.Address.String(),
			UserID:  c.UserID,
		}
	}
	return ResPoolDrop{
		ID:                           pd.ID,
		Version:                      pd.Version,
		CreatedAt:                    pd.CreatedAt.UnixMilli(),
		CreatorID:                    pd.CreatorID,
		CreatorAddress:               pd.CreatorAddress.String(),
		DisplayName:                  pd.DisplayName,
		Network:                      pd.Network,
		Currency:                     pd.Currency,
		Symbol:                       pd.Symbol,
		TotalAmount:                  pd.TotalAmount.String(),
		NumberOfParticipants:         pd.NumberOfParticipants,
		ParticipationAmount:          pd.ParticipationAmount.String(),
		ParticipationAmountFormatted: pd.ParticipationAmountFormatted,
		Claims:                       claims,
		Cancelled:                    pd.Cancelled,
		Executed:                     pd.Executed,
		TransactionIDs:               pd.TransactionIDs,
		CompletedMessage:             pd.CompletedMessage,
		CompletedLink:                pd.CompletedLink,
	}
}
