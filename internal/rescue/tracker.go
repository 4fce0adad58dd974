package rescue

import (
	"context"

	"go.uber.org/zap"

	"github.com/ligun0805/eth-rescue/internal/monitor"
)

// FailurePolicy decides what a transfer without a transaction hash means for
// confirmation.
type FailurePolicy int

const (
	// FailedPending keeps a failed submission unresolved: the sweep never runs
	// while any transfer's fate is unknown.
	FailedPending FailurePolicy = iota
	// FailedResolved counts a failed submission as resolved-failed.
	FailedResolved
)

type Tracker struct {
	chain  Chain
	policy FailurePolicy
	tl     *zap.Logger
}

func NewTracker(chain Chain, policy FailurePolicy, tl *zap.Logger) *Tracker {
	return &Tracker{chain: chain, policy: policy, tl: tl}
}

// Poll fetches receipts for every handle still missing one and reports
// whether all handles are now resolved. Confirmed handles are not queried again.
func (t *Tracker) Poll(ctx context.Context, handles []*Handle) bool {
	done := true
	for _, h := range handles {
		if h.Confirmed() {
			continue
		}
		if !h.Submitted() {
			if t.policy != FailedResolved {
				done = false
			}
			continue
		}
		rcpt, err := t.chain.TransactionReceipt(ctx, *h.Hash)
		if err != nil {
			t.tl.Warn("receipt lookup failed", zap.String("tx", h.Hash.Hex()), zap.Error(err))
			done = false
			continue
		}
		if rcpt == nil {
			done = false
			continue
		}
		h.Receipt = rcpt
		monitor.TransfersConfirmed.Inc()
		fields := []zap.Field{
			zap.String("tx", h.Hash.Hex()),
			zap.String("symbol", h.Symbol),
			zap.Uint64("status", rcpt.Status),
		}
		if rcpt.BlockNumber != nil {
			fields = append(fields, zap.Uint64("block", rcpt.BlockNumber.Uint64()))
		}
		t.tl.Info("transaction confirmed", fields...)
	}
	return done
}
