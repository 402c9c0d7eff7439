package numbers

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Balances travel through Postgres as numeric(78) columns scanned into
// strings; these helpers convert between that representation and big.Int
// without ever passing through a float.

func MustParseBig(s string) *big.Int {
	v, err := ParseBig(s)
	if err != nil {
		panic(err)
	}
	return v
}

func ParseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric string '%s'", s)
	}
	return v, nil
}

func BigToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// FormatUnits renders a base-unit integer as a decimal string with the given
// number of fractional digits (e.g. 9 for gwei→ETH). The database keeps base
// units; shift only at display boundaries.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// SumStrings adds string-encoded integers exactly.
func SumStrings(values []string) (string, error) {
	total := new(big.Int)
	for _, s := range values {
		v, err := ParseBig(s)
		if err != nil {
			return "", err
		}
		total.Add(total, v)
	}
	return total.String(), nil
}
