package rescue

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransferGasLimit is the gas limit of a plain native transfer.
const TransferGasLimit uint64 = 21000

// NativeTx is a value transfer from the rescued account.
// A nil Nonce means the node's pending nonce is used.
type NativeTx struct {
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Nonce    *uint64
}

// TokenTx is an ERC-20 transfer(to, amount) call from the rescued account.
type TokenTx struct {
	Token    common.Address
	To       common.Address
	Amount   *big.Int
	GasPrice *big.Int
	Nonce    uint64
}

// Chain is everything the rescue loop needs from the node. The sender of
// every transaction is the account the implementation signs for.
type Chain interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendNative(ctx context.Context, tx NativeTx) (common.Hash, error)
	SendTokenTransfer(ctx context.Context, tx TokenTx) (common.Hash, error)
	// TransactionReceipt returns nil, nil while the transaction is not mined.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}
