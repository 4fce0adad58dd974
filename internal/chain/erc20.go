package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var erc20ABI abi.ABI

func init() {
	const erc20 = `[
{"inputs":[{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`
	ab, err := abi.JSON(strings.NewReader(erc20))
	if err != nil {
		panic(err)
	}
	erc20ABI = ab
}

// EncodeTransfer packs ERC-20 transfer(to, amount) calldata.
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("bad transfer amount %v", amount)
	}
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("erc20 pack: %w", err)
	}
	return data, nil
}

// --- small RPC helpers (retry + backoff) ---
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		if isRateLimitError(err) {
			backoff *= 2
		}
	}
	return zero, lastErr
}

// callWithRetry performs eth_call with small exponential backoff.
func (c *Client) callWithRetry(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return retry(ctx, func() ([]byte, error) {
		done, err := c.begin(ctx, "eth_call")
		if err != nil {
			return nil, err
		}
		defer done()
		return c.ec.CallContract(ctx, msg, nil)
	})
}

func (c *Client) estimateGasWithRetry(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return retry(ctx, func() (uint64, error) {
		done, err := c.begin(ctx, "eth_estimateGas")
		if err != nil {
			return 0, err
		}
		defer done()
		return c.ec.EstimateGas(ctx, msg)
	})
}

func revertReason(e error) string {
	s := e.Error()
	if i := strings.Index(s, "execution reverted"); i >= 0 {
		return s[i:]
	}
	return s
}

func sel(sig string) []byte {
	return gethcrypto.Keccak256([]byte(sig))[:4]
}

// Pause getters seen in the wild. For the "enabled" family a false value means paused.
var (
	pausedSigs  = []string{"paused()", "isPaused()", "transfersPaused()", "tradingPaused()", "isTradingPaused()"}
	enabledSigs = []string{"transferEnabled()", "isTransferEnabled()", "tradingEnabled()", "isTradingEnabled()"}
)

// CheckPaused probes common pause getters. known is false when the token exposes none.
func (c *Client) CheckPaused(ctx context.Context, token common.Address) (known, paused bool) {
	probe := func(sig string) (bool, bool) {
		res, err := c.callWithRetry(ctx, ethereum.CallMsg{To: &token, Data: sel(sig)})
		if err != nil || len(res) == 0 {
			return false, false
		}
		return true, res[len(res)-1] == 1
	}
	for _, s := range pausedSigs {
		if ok, v := probe(s); ok {
			return true, v
		}
	}
	for _, s := range enabledSigs {
		if ok, v := probe(s); ok {
			return true, !v
		}
	}
	return false, false
}

func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	res, err := c.callWithRetry(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return new(big.Int), nil
	}
	out, err := erc20ABI.Unpack("balanceOf", res)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// PreflightReport summarizes whether a configured token transfer looks sendable right now.
type PreflightReport struct {
	Token        common.Address
	Balance      *big.Int
	Paused       bool
	Transferable bool
	Reason       string
}

// Preflight runs read-only checks for transfer(to, amount) from the signer account.
// It never fails hard: RPC trouble ends up in Reason.
func (c *Client) Preflight(ctx context.Context, token, to common.Address, amount *big.Int) PreflightReport {
	rep := PreflightReport{Token: token}
	from := c.signer.Address()

	if bal, err := c.TokenBalance(ctx, token, from); err == nil {
		rep.Balance = bal
	}
	if known, paused := c.CheckPaused(ctx, token); known && paused {
		rep.Paused = true
		rep.Reason = "token paused"
		return rep
	}

	data, err := EncodeTransfer(to, amount)
	if err != nil {
		rep.Reason = err.Error()
		return rep
	}
	msg := ethereum.CallMsg{From: from, To: &token, Data: data, Value: new(big.Int)}

	// Static call to inspect return data (strict ERC-20 semantics).
	ret, callErr := c.callWithRetry(ctx, msg)
	if callErr != nil {
		rep.Reason = revertReason(callErr)
		return rep
	}
	// Tokens that return nothing fall back to a gas estimate.
	if len(ret) == 0 {
		if _, e := c.estimateGasWithRetry(ctx, msg); e != nil {
			rep.Reason = "transfer would revert"
			return rep
		}
		rep.Transferable = true
		return rep
	}
	if ret[len(ret)-1] != 1 {
		rep.Reason = "transfer() returned false"
		return rep
	}
	rep.Transferable = true
	return rep
}
