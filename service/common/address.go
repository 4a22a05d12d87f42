package common

import (
	"database/sql/driver"
	"fmt"

	eth "github.com/ethereum/go-ethereum/common"
)

type EthAddress eth.Address

func (a EthAddress) String() string {
	return eth.Address(a).Hex()
}

func (a EthAddress) IsZero() bool {
	return a == EthAddress{}
}

func (a EthAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", eth.Address(a).Hex())), nil
}

func (a *EthAddress) UnmarshalJSON(data []byte) error {
	b := eth.Address(*a)
	if err := b.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = EthAddress(b)
	return nil
}

func (a EthAddress) Value() (driver.Value, error) {
	return eth.Address(a).Bytes(), nil
}

func (a *EthAddress) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal EthAddress value: %v", value)
	}
	*a = EthAddress(eth.BytesToAddress(bytes))
	return nil
}

func (EthAddress) GormDataType() string {
	return "bytes"
}

func EthAddressFromString(s string) EthAddress {
	return EthAddress(eth.HexToAddress(s))
}
