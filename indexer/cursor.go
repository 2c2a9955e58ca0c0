package indexer

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mikeydub/erc20-holders-indexer/validate"
)

// ErrMalformedCursor is returned by DecodeCursor when its input isn't a value EncodeCursor
// could have produced.
var ErrMalformedCursor = errors.New("malformed holder cursor")

// EncodeCursor renders a holder's (balance, address) position as the opaque string clients pass
// back to page through GetHolders. The canonical form is "<balance_decimal>:<holder_lowerhex>".
func EncodeCursor(balance *big.Int, holder string) string {
	return fmt.Sprintf("%s:%s", balance.String(), strings.ToLower(holder))
}

// DecodeCursor parses a cursor previously produced by EncodeCursor.
func DecodeCursor(cursor string) (*big.Int, string, error) {
	idx := strings.LastIndex(cursor, ":")
	if idx <= 0 || idx == len(cursor)-1 {
		return nil, "", ErrMalformedCursor
	}

	balance, ok := new(big.Int).SetString(cursor[:idx], 10)
	if !ok {
		return nil, "", ErrMalformedCursor
	}

	holder := strings.ToLower(cursor[idx+1:])
	if !validate.IsHexAddress(holder) {
		return nil, "", ErrMalformedCursor
	}

	return balance, holder, nil
}
