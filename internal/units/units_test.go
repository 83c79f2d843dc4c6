package units

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	v, err := ParseEther("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.Dec())

	v, err = ParseEther("10")
	require.NoError(t, err)
	assert.True(t, v.Eq(Ether(10)))

	_, err = ParseEther("-1")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ParseEther("0.0000000000000000001")
	assert.ErrorIs(t, err, ErrFractionalWei)

	_, err = ParseEther("abc")
	assert.ErrorIs(t, err, ErrInvalidAmountStr)
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "1.5", FormatEther(uint256.NewInt(1_500_000_000_000_000_000)))
	assert.Equal(t, "0", FormatEther(nil))
	assert.Equal(t, "0.000000000000000001", FormatEther(uint256.NewInt(1)))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v.Uint64())

	v, err = ParseAmount("2eth")
	require.NoError(t, err)
	assert.True(t, v.Eq(Ether(2)))

	_, err = ParseAmount("0x10")
	assert.Error(t, err)
}
