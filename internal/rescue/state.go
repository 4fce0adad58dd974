package rescue

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Phase int

const (
	PhaseWatching Phase = iota
	PhaseTriggered
	PhaseConfirming
	PhaseSweeping
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseWatching:
		return "WATCHING"
	case PhaseTriggered:
		return "TRIGGERED"
	case PhaseConfirming:
		return "CONFIRMING"
	case PhaseSweeping:
		return "SWEEPING"
	case PhaseDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// TokenTransfer is one configured token to move, amount already in base units.
type TokenTransfer struct {
	Token  common.Address
	To     common.Address
	Amount *big.Int
	Symbol string
}

// Handle tracks one submitted token transfer. Hash is nil when the
// submission failed; Receipt is nil until the transfer is mined.
type Handle struct {
	Index   int
	Symbol  string
	Nonce   uint64
	Hash    *common.Hash
	Err     error
	Receipt *types.Receipt
}

func (h *Handle) Submitted() bool { return h.Hash != nil }
func (h *Handle) Confirmed() bool { return h.Receipt != nil }

// State is owned by the rescue loop goroutine; nothing else may mutate it.
type State struct {
	Address  common.Address
	Balance  *big.Int
	GasPrice *big.Int

	armed   bool
	fired   bool
	phase   Phase
	handles []*Handle
}

func NewState(address common.Address, balance, gasPrice *big.Int) *State {
	if balance == nil {
		balance = new(big.Int)
	}
	return &State{
		Address:  address,
		Balance:  new(big.Int).Set(balance),
		GasPrice: new(big.Int).Set(gasPrice),
		armed:    true,
	}
}

func (s *State) Armed() bool { return s.armed }
func (s *State) Fired() bool { return s.fired }
func (s *State) Phase() Phase { return s.phase }
func (s *State) Handles() []*Handle { return s.handles }

// Observe records the balance read for a new block and reports whether the
// rescue must start now. It disarms on the first change; the stored balance
// is always replaced so the next block compares against fresh data.
func (s *State) Observe(balance *big.Int) bool {
	trigger := s.armed && s.Balance.Cmp(balance) != 0
	if trigger {
		s.armed = false
		s.phase = PhaseTriggered
	}
	s.Balance = new(big.Int).Set(balance)
	return trigger
}

// Fire stores the submitted batch. Only the first call has any effect.
func (s *State) Fire(handles []*Handle) bool {
	if s.fired {
		return false
	}
	s.fired = true
	s.handles = handles
	s.phase = PhaseConfirming
	return true
}

func (s *State) setPhase(p Phase) { s.phase = p }
