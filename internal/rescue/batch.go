package rescue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/ligun0805/eth-rescue/internal/monitor"
)

// Result is the outcome of one token transfer submission.
type Result struct {
	Transfer TokenTransfer
	Nonce    uint64
	Hash     common.Hash
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

type BatchExecutor struct {
	chain Chain
	from  common.Address
	tl    *zap.Logger
}

func NewBatchExecutor(chain Chain, from common.Address, tl *zap.Logger) *BatchExecutor {
	return &BatchExecutor{chain: chain, from: from, tl: tl}
}

// Execute submits every transfer concurrently. Nonces are assigned from a
// single pending-nonce read before anything is sent: transfer i gets base+i.
// A failed submission is recorded in its result and never stops the others.
func (e *BatchExecutor) Execute(ctx context.Context, transfers []TokenTransfer, gasPrice *big.Int) []Result {
	if len(transfers) == 0 {
		return nil
	}
	results := make([]Result, len(transfers))

	base, err := e.chain.PendingNonceAt(ctx, e.from)
	if err != nil {
		e.tl.Error("fetch pending nonce failed, no token transfer sent", zap.Error(err))
		for i, t := range transfers {
			results[i] = Result{Transfer: t, Err: fmt.Errorf("pending nonce: %w", err)}
			monitor.TransfersSubmitted.WithLabelValues("error").Inc()
		}
		return results
	}
	for i, t := range transfers {
		results[i] = Result{Transfer: t, Nonce: base + uint64(i)}
	}

	p := pool.New()
	for i := range results {
		r := &results[i]
		p.Go(func() {
			hash, err := e.chain.SendTokenTransfer(ctx, TokenTx{
				Token:    r.Transfer.Token,
				To:       r.Transfer.To,
				Amount:   r.Transfer.Amount,
				GasPrice: gasPrice,
				Nonce:    r.Nonce,
			})
			if err != nil {
				r.Err = err
				monitor.TransfersSubmitted.WithLabelValues("error").Inc()
				e.tl.Error("token transfer rejected",
					zap.String("symbol", r.Transfer.Symbol),
					zap.String("token", r.Transfer.Token.Hex()),
					zap.Uint64("nonce", r.Nonce),
					zap.Error(err))
				return
			}
			r.Hash = hash
			monitor.TransfersSubmitted.WithLabelValues("ok").Inc()
			e.tl.Info("token sent",
				zap.String("symbol", r.Transfer.Symbol),
				zap.String("amount", r.Transfer.Amount.String()),
				zap.Uint64("nonce", r.Nonce),
				zap.String("tx", hash.Hex()))
		})
	}
	p.Wait()
	return results
}

// handlesFrom turns batch results into one handle per configured transfer.
func handlesFrom(results []Result) []*Handle {
	handles := make([]*Handle, len(results))
	for i, r := range results {
		h := &Handle{Index: i, Symbol: r.Transfer.Symbol, Nonce: r.Nonce, Err: r.Err}
		if r.Err == nil {
			hash := r.Hash
			h.Hash = &hash
		}
		handles[i] = h
	}
	return handles
}
