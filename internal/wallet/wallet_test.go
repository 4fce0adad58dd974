package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	devMnemonic = "test test test test test test test test test test test junk"
	devKey0     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

var (
	devAddr0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	devAddr1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func TestFromPrivateKeyHex(t *testing.T) {
	w, err := FromPrivateKeyHex(devKey0)
	require.NoError(t, err)
	assert.Equal(t, devAddr0, w.Address())

	w, err = FromPrivateKeyHex("  " + devKey0[2:] + "\n")
	require.NoError(t, err)
	assert.Equal(t, devAddr0, w.Address())

	_, err = FromPrivateKeyHex("")
	require.Error(t, err)
	_, err = FromPrivateKeyHex("0xzz")
	require.Error(t, err)
}

func TestFromMnemonic(t *testing.T) {
	w, err := FromMnemonic(devMnemonic, 0)
	require.NoError(t, err)
	assert.Equal(t, devAddr0, w.Address())

	w, err = FromMnemonic("  test test test test test test\ttest test test test test junk ", 1)
	require.NoError(t, err)
	assert.Equal(t, devAddr1, w.Address())

	_, err = FromMnemonic("not a valid phrase", 0)
	require.Error(t, err)
}

func TestSignTx(t *testing.T) {
	w, err := FromPrivateKeyHex(devKey0)
	require.NoError(t, err)

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	tx := types.NewTx(&types.LegacyTx{Nonce: 7, To: &to, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1)})
	chainID := big.NewInt(1)
	signed, err := w.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, devAddr0, from)
}
