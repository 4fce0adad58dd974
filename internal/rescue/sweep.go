package rescue

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/eth-rescue/internal/monitor"
	"github.com/ligun0805/eth-rescue/internal/units"
)

var ErrNothingToSweep = errors.New("account is empty, nothing to sweep")

type SweepResult struct {
	Hash   common.Hash
	Amount *big.Int
	Cost   *big.Int
}

// SweepAmount returns balance - 21000*gasPrice and the fee itself.
// The amount is not clamped: a balance below the fee yields a negative value
// that the node rejects.
func SweepAmount(balance, gasPrice *big.Int) (amount, cost *big.Int) {
	cost = new(big.Int).Mul(new(big.Int).SetUint64(TransferGasLimit), gasPrice)
	amount = new(big.Int).Sub(balance, cost)
	return amount, cost
}

type Sweeper struct {
	chain  Chain
	target common.Address
	tl     *zap.Logger
}

func NewSweeper(chain Chain, target common.Address, tl *zap.Logger) *Sweeper {
	return &Sweeper{chain: chain, target: target, tl: tl}
}

// Sweep sends everything left net of the transfer fee to the target. There is no retry.
func (s *Sweeper) Sweep(ctx context.Context, balance, gasPrice *big.Int) (SweepResult, error) {
	if balance == nil || balance.Sign() == 0 {
		s.tl.Info("account is empty, no ETH to sweep")
		return SweepResult{}, ErrNothingToSweep
	}
	amount, cost := SweepAmount(balance, gasPrice)
	res := SweepResult{Amount: amount, Cost: cost}

	hash, err := s.chain.SendNative(ctx, NativeTx{
		To:       s.target,
		Value:    amount,
		GasLimit: TransferGasLimit,
		GasPrice: gasPrice,
	})
	if err != nil {
		monitor.SweepsSubmitted.WithLabelValues("error").Inc()
		s.tl.Error("sweep rejected",
			zap.String("amount_eth", units.FormatEther(amount)),
			zap.String("cost_eth", units.FormatEther(cost)),
			zap.Error(err))
		return res, fmt.Errorf("send sweep: %w", err)
	}
	res.Hash = hash
	monitor.SweepsSubmitted.WithLabelValues("ok").Inc()
	s.tl.Info("ETH sent",
		zap.String("amount_eth", units.FormatEther(amount)),
		zap.String("to", s.target.Hex()),
		zap.String("tx", hash.Hex()))
	return res, nil
}
