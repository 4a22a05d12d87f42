// Package wallet talks to the external wallet backend: session sign-in,
// link registration and the signing service the unsigned calls are handed to.
// Key custody and actual signing never happen in this process.
package wallet

import (
	"context"

	"github.com/dropworks/pooldrop/service/chain"
)

// Profile is the signed-in wallet user.
type Profile struct {
	UserID      string            `json:"userId"`
	DisplayName string            `json:"displayName"`
	Addresses   map[string]string `json:"addresses"` // currency -> address
}

// AddressFor returns the user's address for a currency, or "" when the wallet
// holds none.
func (p *Profile) AddressFor(currency string) string {
	if p == nil {
		return ""
	}
	return p.Addresses[currency]
}

// LinkRequest registers a shareable pool drop link with the wallet backend.
type LinkRequest struct {
	ImageTopTitle   string `json:"imageTopTitle"`
	ImageMainLine   string `json:"imageMainLine"`
	ImageSecondLine string `json:"imageSecondLine"`
	Message         string `json:"message"`
	Currency        string `json:"currency"`
}

type Client interface {
	// SignIn validates a session token and returns the user's profile.
	SignIn(ctx context.Context, token string) (*Profile, error)

	// CreateLink registers a link object and returns its id, which becomes
	// the pool drop record id.
	CreateLink(ctx context.Context, token string, req LinkRequest) (string, error)

	// RequestSignature hands the unsigned calls to the signing service and
	// returns an opaque signing request identifier. The calls must be
	// submitted in order; their nonces are sequential.
	RequestSignature(ctx context.Context, userID string, calls []chain.CallRequest) (string, error)
}
