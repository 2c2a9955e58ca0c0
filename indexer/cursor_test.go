package indexer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_roundTrips(t *testing.T) {
	balance := big.NewInt(123456789)
	holder := "0x1111111111111111111111111111111111111111"

	encoded := EncodeCursor(balance, holder)

	gotBalance, gotHolder, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Zero(t, gotBalance.Cmp(balance), "balance mismatch")
	assert.Equal(t, holder, gotHolder)
}

func TestEncodeCursor_lowercasesHolder(t *testing.T) {
	encoded := EncodeCursor(big.NewInt(1), "0xABCDEF1111111111111111111111111111111111")
	_, holder, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef1111111111111111111111111111111111", holder)
}

func TestDecodeCursor_rejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"no-colon-here",
		"123:",
		"notanumber:0x1111111111111111111111111111111111111111",
		"123:not-an-address",
	}
	for _, c := range cases {
		_, _, err := DecodeCursor(c)
		assert.ErrorIs(t, err, ErrMalformedCursor, "DecodeCursor(%q)", c)
	}
}
