package rescue

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type fakeSub struct {
	once  sync.Once
	errCh chan error
}

func newFakeSub() *fakeSub { return &fakeSub{errCh: make(chan error, 1)} }

func (s *fakeSub) Unsubscribe() { s.once.Do(func() { close(s.errCh) }) }
func (s *fakeSub) Err() <-chan error { return s.errCh }

// fakeChain is an in-memory Chain. Every sent transaction gets a receipt
// once receiptsReady is true.
type fakeChain struct {
	mu sync.Mutex

	balance       *big.Int
	balanceErr    error
	nonce         uint64
	nonceErr      error
	nonceCalls    int
	gasPrice      *big.Int
	failTokens    map[common.Address]error
	nativeErr     error
	receiptsReady bool
	subscribeErr  error

	heads         chan<- *types.Header
	subs          []*fakeSub
	tokenTxs      []TokenTx
	nativeTxs     []NativeTx
	receiptCalls  map[common.Hash]int
	sentHashes    map[common.Hash]bool
	subscribeCall int
}

func newFakeChain(balance *big.Int) *fakeChain {
	return &fakeChain{
		balance:      new(big.Int).Set(balance),
		gasPrice:     big.NewInt(1_000_000_000),
		failTokens:   map[common.Address]error{},
		receiptCalls: map[common.Hash]int{},
		sentHashes:   map[common.Hash]bool{},
	}
}

func (f *fakeChain) setBalance(b *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance = new(big.Int).Set(b)
}

func (f *fakeChain) setReceiptsReady(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptsReady = v
}

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCall++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.heads = ch
	sub := newFakeSub()
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeChain) headsChan() chan<- *types.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heads
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeChain) SendNative(ctx context.Context, tx NativeTx) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nativeErr != nil {
		return common.Hash{}, f.nativeErr
	}
	if tx.Value.Sign() < 0 {
		return common.Hash{}, errors.New("insufficient funds for gas * price + value")
	}
	f.nativeTxs = append(f.nativeTxs, tx)
	h := crypto.Keccak256Hash([]byte("native"), tx.Value.Bytes())
	f.sentHashes[h] = true
	return h, nil
}

func (f *fakeChain) SendTokenTransfer(ctx context.Context, tx TokenTx) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failTokens[tx.Token]; err != nil {
		return common.Hash{}, err
	}
	f.tokenTxs = append(f.tokenTxs, tx)
	h := crypto.Keccak256Hash(tx.Token.Bytes(), new(big.Int).SetUint64(tx.Nonce).Bytes())
	f.sentHashes[h] = true
	return h, nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls[hash]++
	if !f.receiptsReady || !f.sentHashes[hash] {
		return nil, nil
	}
	return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}, nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) snapshot() (tokenTxs []TokenTx, nativeTxs []NativeTx, nonceCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TokenTx(nil), f.tokenTxs...), append([]NativeTx(nil), f.nativeTxs...), f.nonceCalls
}
