package units

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		name     string
		amount   string
		decimals int32
		want     string
		wantErr  bool
	}{
		{"whole ether", "5", 18, "5000000000000000000", false},
		{"fractional ether", "0.000000000000000001", 18, "1", false},
		{"usdt", "100.5", 6, "100500000", false},
		{"zero", "0", 18, "0", false},
		{"too precise", "1.0000001", 6, "", true},
		{"negative", "-1", 18, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tc.amount), tc.decimals)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestGweiToWei(t *testing.T) {
	wei, err := GweiToWei(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_500_000_000), wei)
}

func TestFormat(t *testing.T) {
	wei, _ := new(big.Int).SetString("1234500000000000000", 10)
	assert.Equal(t, "1.234500", FormatEther(wei))
	assert.Equal(t, "30.00", FormatGwei(big.NewInt(30_000_000_000)))
	assert.Equal(t, "100.5", FormatTokens(big.NewInt(100_500_000), 6))
	assert.Equal(t, "0.000000", FormatEther(nil))
}
