// Package wallet turns the configured credential into a signing key.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// m/44'/60'/0'/0/{index}
var ethereumPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
}

type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromPrivateKeyHex parses a hex ECDSA private key (with / without 0x).
func FromPrivateKeyHex(s string) (*Wallet, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if len(h) == 0 {
		return nil, errors.New("empty private key")
	}
	prv, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return fromKey(prv), nil
}

// FromMnemonic derives the account at m/44'/60'/0'/0/index.
func FromMnemonic(phrase string, index uint32) (*Wallet, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	if !bip39.IsMnemonicValid(phrase) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(phrase, "")
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, i := range append(ethereumPath, index) {
		key, err = key.Derive(i)
		if err != nil {
			return nil, fmt.Errorf("derive %d: %w", i, err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("ec key: %w", err)
	}
	return fromKey(priv.ToECDSA()), nil
}

func fromKey(prv *ecdsa.PrivateKey) *Wallet {
	return &Wallet{key: prv, address: gethcrypto.PubkeyToAddress(prv.PublicKey)}
}

func (w *Wallet) Address() common.Address { return w.address }

// SignTx signs with the latest signer for the given chain ID.
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
}
