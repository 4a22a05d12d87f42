package common

import (
	"fmt"
	"strings"
)

// ParseCurrency splits a "NETWORK:TOKEN_ADDRESS" currency identifier into its
// network and token contract parts.
func ParseCurrency(currency string) (network string, token EthAddress, err error) {
	parts := strings.SplitN(currency, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", EthAddress{}, fmt.Errorf("invalid currency %q, expected NETWORK:TOKEN_ADDRESS", currency)
	}
	token = EthAddressFromString(parts[1])
	if token.IsZero() {
		return "", EthAddress{}, fmt.Errorf("invalid token address in currency %q", currency)
	}
	return parts[0], token, nil
}
