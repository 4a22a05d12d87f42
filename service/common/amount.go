package common

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/dropworks/pooldrop/service/errors"
)

// Amount is a base-10 arbitrary precision token amount. All arithmetic on
// token quantities goes through this type; binary floating point is never
// used as amounts like 0.1 are not representable in it.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{d}
}

// ParseAmount parses a decimal string. Malformed or negative input is
// rejected with ErrInvalidAmount.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", errors.ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q is negative", errors.ErrInvalidAmount, s)
	}
	return Amount{d}, nil
}

// AmountFromUnits converts a smallest-unit integer back to a decimal amount.
func AmountFromUnits(units *big.Int, decimals int32) Amount {
	return Amount{decimal.NewFromBigInt(units, -decimals)}
}

func (a Amount) Add(b Amount) Amount {
	return Amount{a.Decimal.Add(b.Decimal)}
}

func (a Amount) MulInt(n int64) Amount {
	return Amount{a.Decimal.Mul(decimal.NewFromInt(n))}
}

func (a Amount) Cmp(b Amount) int {
	return a.Decimal.Cmp(b.Decimal)
}

// DivideFloor divides the amount by n and rounds the quotient down to the
// given number of decimal places. Rounding down is what keeps a distribution
// from allocating more than its total. The division happens in smallest-unit
// integers, which floors exactly at any input precision: for non-negative x
// and positive n, floor(x/n) == floor(floor(x)/n). Zero or negative divisors
// are rejected with ErrInvalidAmount.
func (a Amount) DivideFloor(n int64, places int32) (Amount, error) {
	if n <= 0 {
		return Amount{}, fmt.Errorf("%w: division by %d", errors.ErrInvalidAmount, n)
	}
	units := a.ToUnits(places)
	units.Quo(units, big.NewInt(n))
	return AmountFromUnits(units, places), nil
}

// ToUnits converts the amount to its smallest-unit integer representation,
// rounding down.
func (a Amount) ToUnits(decimals int32) *big.Int {
	return a.Decimal.Shift(decimals).RoundFloor(0).BigInt()
}

// ToUnitsCeil converts the amount to its smallest-unit integer
// representation, rounding up. Used for aggregate approvals, where rounding
// down would leave the allowance one unit short and revert the batch
// transfer.
func (a Amount) ToUnitsCeil(decimals int32) *big.Int {
	return a.Decimal.Shift(decimals).RoundCeil(0).BigInt()
}

func (a Amount) Value() (driver.Value, error) {
	return a.Decimal.String(), nil
}

func (a *Amount) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("failed to scan Amount value: %v", value)
	}
	if s == "" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

func (Amount) GormDataType() string {
	return "text"
}
