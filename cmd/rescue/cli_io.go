package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/ligun0805/eth-rescue/internal/config"
	"github.com/ligun0805/eth-rescue/internal/units"
	"github.com/ligun0805/eth-rescue/internal/wallet"
)

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// loadWallet prefers the mnemonic, then the private key, then asks on the terminal.
func loadWallet(st *config.Settings, index uint32) (*wallet.Wallet, error) {
	if err := st.CheckCredential(); err == nil {
		if strings.TrimSpace(st.Mnemonic) != "" {
			return wallet.FromMnemonic(st.Mnemonic, index)
		}
		return wallet.FromPrivateKeyHex(st.PrivateKey)
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil, config.ErrNoCredential
	}
	secret, err := readPassword("Private key or mnemonic: ")
	if err != nil {
		return nil, err
	}
	if len(strings.Fields(secret)) > 1 {
		return wallet.FromMnemonic(secret, index)
	}
	return wallet.FromPrivateKeyHex(secret)
}

func parseGwei(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if !d.IsPositive() {
		return nil, errors.New("must be positive")
	}
	return units.GweiToWei(d)
}

func maskHex(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}
