package rescue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ligun0805/eth-rescue/internal/monitor"
	"github.com/ligun0805/eth-rescue/internal/units"
)

type Outcome int

const (
	OutcomeSwept Outcome = iota + 1
	OutcomeEmpty
	OutcomeSweepFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSwept:
		return "swept"
	case OutcomeEmpty:
		return "empty"
	case OutcomeSweepFailed:
		return "sweep failed"
	}
	return "unknown"
}

type Config struct {
	Target           common.Address
	Transfers        []TokenTransfer
	FailurePolicy    FailurePolicy
	ResubscribeDelay time.Duration
}

// Machine drives the rescue from new-head notifications. All State mutation
// happens on the goroutine running Run.
type Machine struct {
	chain   Chain
	cfg     Config
	state   *State
	batch   *BatchExecutor
	tracker *Tracker
	sweeper *Sweeper
	tl      *zap.Logger
}

func NewMachine(chain Chain, state *State, cfg Config, tl *zap.Logger) *Machine {
	if cfg.ResubscribeDelay <= 0 {
		cfg.ResubscribeDelay = 2 * time.Second
	}
	return &Machine{
		chain:   chain,
		cfg:     cfg,
		state:   state,
		batch:   NewBatchExecutor(chain, state.Address, tl),
		tracker: NewTracker(chain, cfg.FailurePolicy, tl),
		sweeper: NewSweeper(chain, cfg.Target, tl),
		tl:      tl,
	}
}

func (m *Machine) State() *State { return m.state }

// Run blocks until the rescue finishes or ctx is done.
func (m *Machine) Run(ctx context.Context) (Outcome, error) {
	heads := make(chan *types.Header, 16)
	sub, err := m.chain.SubscribeNewHead(ctx, heads)
	if err != nil {
		return 0, fmt.Errorf("subscribe new heads: %w", err)
	}
	defer func() { sub.Unsubscribe() }()

	batchDone := make(chan []Result, 1)
	m.transition(PhaseWatching)
	m.tl.Info("waiting for new ETH balance ...")

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case err := <-sub.Err():
			monitor.SubscriptionErrors.Inc()
			m.tl.Error("new head subscription failed", zap.Error(err))
			sub.Unsubscribe()
			next, err := m.resubscribe(ctx, heads)
			if err != nil {
				return 0, err
			}
			sub = next
		case head := <-heads:
			if outcome, done := m.onHead(ctx, head, batchDone); done {
				return outcome, nil
			}
		case results := <-batchDone:
			m.onBatchDone(results)
		}
	}
}

func (m *Machine) resubscribe(ctx context.Context, heads chan<- *types.Header) (ethereum.Subscription, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.cfg.ResubscribeDelay):
		}
		sub, err := m.chain.SubscribeNewHead(ctx, heads)
		if err == nil {
			m.tl.Info("new head subscription restored")
			return sub, nil
		}
		monitor.SubscriptionErrors.Inc()
		m.tl.Warn("resubscribe failed", zap.Error(err))
	}
}

func (m *Machine) onHead(ctx context.Context, head *types.Header, batchDone chan<- []Result) (Outcome, bool) {
	monitor.HeadsReceived.Inc()
	bal, err := m.chain.BalanceAt(ctx, m.state.Address)
	if err != nil {
		monitor.BalanceReadErrors.Inc()
		m.tl.Warn("balance read failed, skipping block", zap.Uint64("block", blockNumber(head)), zap.Error(err))
		return 0, false
	}
	m.tl.Debug("new block", zap.Uint64("block", blockNumber(head)), zap.String("balance_eth", units.FormatEther(bal)))

	if m.state.Observe(bal) {
		m.transition(PhaseTriggered)
		m.tl.Warn("balance changed, sending tokens", zap.String("new_balance_eth", units.FormatEther(bal)))
		transfers, gasPrice := m.cfg.Transfers, new(big.Int).Set(m.state.GasPrice)
		go func() {
			batchDone <- m.batch.Execute(ctx, transfers, gasPrice)
		}()
	}
	monitor.AccountBalance.Set(etherFloat(m.state.Balance))

	if !m.state.Fired() {
		return 0, false
	}
	if !m.tracker.Poll(ctx, m.state.Handles()) {
		return 0, false
	}
	m.transition(PhaseSweeping)
	m.tl.Info("tokens successfully sent, sending rest of ETH ...")
	return m.sweep(ctx), true
}

func (m *Machine) onBatchDone(results []Result) {
	handles := handlesFrom(results)
	if !m.state.Fire(handles) {
		return
	}
	failed := 0
	for _, h := range handles {
		if h.Submitted() {
			continue
		}
		failed++
		if m.cfg.FailurePolicy == FailedPending {
			m.tl.Warn("transfer has no transaction hash; confirmation will not complete",
				zap.String("symbol", h.Symbol), zap.Uint64("nonce", h.Nonce), zap.Error(h.Err))
		}
	}
	m.transition(PhaseConfirming)
	m.tl.Info("tokens sent, waiting for confirmations ..",
		zap.Int("submitted", len(handles)-failed), zap.Int("failed", failed))
}

func (m *Machine) sweep(ctx context.Context) Outcome {
	defer m.transition(PhaseDone)
	_, err := m.sweeper.Sweep(ctx, m.state.Balance, m.state.GasPrice)
	switch {
	case errors.Is(err, ErrNothingToSweep):
		return OutcomeEmpty
	case err != nil:
		return OutcomeSweepFailed
	}
	m.tl.Info("all done")
	return OutcomeSwept
}

func (m *Machine) transition(p Phase) {
	m.state.setPhase(p)
	monitor.Phase.Set(float64(p))
	m.tl.Info("rescue phase",
		zap.Stringer("phase", p),
		zap.String("address", m.state.Address.Hex()),
		zap.String("balance_eth", units.FormatEther(m.state.Balance)),
		zap.String("gas_price_gwei", units.FormatGwei(m.state.GasPrice)))
}

func blockNumber(h *types.Header) uint64 {
	if h == nil || h.Number == nil {
		return 0
	}
	return h.Number.Uint64()
}

func etherFloat(wei *big.Int) float64 {
	f, _ := units.FromBaseUnits(wei, units.EtherDecimals).Float64()
	return f
}
