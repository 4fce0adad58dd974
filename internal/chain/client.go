// Package chain implements the rescue Chain on top of go-ethereum's ethclient.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ligun0805/eth-rescue/internal/monitor"
	"github.com/ligun0805/eth-rescue/internal/rescue"
)

// ErrInsufficientFunds mirrors the node's rejection for a value the sender cannot cover.
var ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")

// fallback gas for ERC-20 transfer when estimation fails
const defaultTokenGas uint64 = 70000

type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

type Options struct {
	// RateLimit caps RPC calls per second; 0 means unlimited.
	RateLimit    float64
	DialTimeout  time.Duration
	GasBufferPct int64
}

type Client struct {
	ec      *ethclient.Client
	signer  Signer
	chainID *big.Int
	limiter *rate.Limiter
	opts    Options
	tl      *zap.Logger
}

var _ rescue.Chain = (*Client)(nil)

// Dial connects to the node. Block subscriptions need a ws:// or ipc endpoint.
func Dial(ctx context.Context, rawurl string, signer Signer, opts Options, tl *zap.Logger) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	ec, err := ethclient.DialContext(dctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	chainID, err := ec.ChainID(dctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return New(ec, chainID, signer, opts, tl), nil
}

func New(ec *ethclient.Client, chainID *big.Int, signer Signer, opts Options, tl *zap.Logger) *Client {
	limit := rate.Inf
	burst := 0
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		burst = 1
	}
	return &Client{
		ec:      ec,
		signer:  signer,
		chainID: new(big.Int).Set(chainID),
		limiter: rate.NewLimiter(limit, burst),
		opts:    opts,
		tl:      tl,
	}
}

func (c *Client) Close() { c.ec.Close() }
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// begin waits for the rate limiter and returns a func recording the call latency.
func (c *Client) begin(ctx context.Context, method string) (func(), error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	return func() {
		monitor.RPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}, nil
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	done, err := c.begin(ctx, "eth_getBalance")
	if err != nil {
		return nil, err
	}
	defer done()
	return c.ec.BalanceAt(ctx, account, nil)
}

func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return c.ec.SubscribeNewHead(ctx, ch)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	done, err := c.begin(ctx, "eth_getTransactionCount")
	if err != nil {
		return 0, err
	}
	defer done()
	return c.ec.PendingNonceAt(ctx, account)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	done, err := c.begin(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}
	defer done()
	return c.ec.SuggestGasPrice(ctx)
}

// TransactionReceipt returns nil, nil for a transaction that is not mined yet.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	done, err := c.begin(ctx, "eth_getTransactionReceipt")
	if err != nil {
		return nil, err
	}
	defer done()
	r, err := c.ec.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return r, err
}

func (c *Client) SendNative(ctx context.Context, tx rescue.NativeTx) (common.Hash, error) {
	if tx.Value == nil || tx.Value.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("%w: value %v", ErrInsufficientFunds, tx.Value)
	}
	var nonce uint64
	if tx.Nonce != nil {
		nonce = *tx.Nonce
	} else {
		n, err := c.PendingNonceAt(ctx, c.signer.Address())
		if err != nil {
			return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
		}
		nonce = n
	}
	to := tx.To
	return c.signAndSend(ctx, buildLegacyTx(nonce, &to, tx.Value, tx.GasLimit, tx.GasPrice, nil))
}

func (c *Client) SendTokenTransfer(ctx context.Context, tx rescue.TokenTx) (common.Hash, error) {
	data, err := EncodeTransfer(tx.To, tx.Amount)
	if err != nil {
		return common.Hash{}, err
	}
	gas := c.estimateTokenGas(ctx, tx.Token, data)
	token := tx.Token
	return c.signAndSend(ctx, buildLegacyTx(tx.Nonce, &token, new(big.Int), gas, tx.GasPrice, data))
}

func (c *Client) estimateTokenGas(ctx context.Context, token common.Address, data []byte) uint64 {
	est, err := c.estimateGasWithRetry(ctx, ethereum.CallMsg{From: c.signer.Address(), To: &token, Value: new(big.Int), Data: data})
	if err != nil {
		c.tl.Warn("estimateGas failed, using fallback",
			zap.String("token", token.Hex()), zap.Uint64("gas", defaultTokenGas), zap.Error(err))
		return defaultTokenGas
	}
	return est + est*uint64(max(c.opts.GasBufferPct, 0))/100
}

func (c *Client) signAndSend(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	done, err := c.begin(ctx, "eth_sendRawTransaction")
	if err != nil {
		return common.Hash{}, err
	}
	defer done()
	if err := c.ec.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

// Build a legacy gas-price transaction.
func buildLegacyTx(nonce uint64, to *common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(gasPrice),
		Gas:      gasLimit,
		To:       to,
		Value:    new(big.Int).Set(value),
		Data:     data,
	})
}
