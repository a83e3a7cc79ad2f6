package operator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/lottery-enclave/internal/chainclient"
	"github.com/offchainlabs/lottery-enclave/internal/store"
)

type fakeChain struct {
	mu         sync.Mutex
	drawCalls  int32
	refundCalls int32
	block      chan struct{} // if non-nil, DrawRound blocks until closed
}

func (f *fakeChain) DrawRound(ctx context.Context, roundID uint64) (common.Hash, error) {
	atomic.AddInt32(&f.drawCalls, 1)
	if f.block != nil {
		<-f.block
	}
	return common.HexToHash("0x01"), nil
}

func (f *fakeChain) RefundRound(ctx context.Context, roundID uint64) (common.Hash, error) {
	atomic.AddInt32(&f.refundCalls, 1)
	return common.HexToHash("0x02"), nil
}

func (f *fakeChain) WaitForTransaction(ctx context.Context, txHash common.Hash, timeout time.Duration) (*chainclient.Receipt, error) {
	return &chainclient.Receipt{Status: 1, BlockNumber: 1, GasUsed: 21000}, nil
}

func withFixedNow(ts uint64) func() {
	orig := now
	now = func() uint64 { return ts }
	return func() { now = orig }
}

func TestOperator_DrawsWithinWindow(t *testing.T) {
	defer withFixedNow(1500)()
	fc := &fakeChain{}
	op := New(fc, store.New(), Options{})

	op.onRoundUpdate(context.Background(), &store.RoundPayload{
		RoundID: 1, StateLabel: "BETTING", MinDrawTime: 1000, MaxDrawTime: 2000,
	})
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&fc.drawCalls) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&fc.drawCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(&fc.refundCalls))
}

func TestOperator_RefundsAfterMaxDrawTime(t *testing.T) {
	defer withFixedNow(2500)()
	fc := &fakeChain{}
	op := New(fc, store.New(), Options{})

	op.onRoundUpdate(context.Background(), &store.RoundPayload{
		RoundID: 1, StateLabel: "BETTING", MinDrawTime: 1000, MaxDrawTime: 2000,
	})
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&fc.refundCalls) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&fc.refundCalls))
}

func TestOperator_NoopBeforeMinDrawTime(t *testing.T) {
	defer withFixedNow(500)()
	fc := &fakeChain{}
	op := New(fc, store.New(), Options{})

	op.onRoundUpdate(context.Background(), &store.RoundPayload{
		RoundID: 1, StateLabel: "BETTING", MinDrawTime: 1000, MaxDrawTime: 2000,
	})
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&fc.drawCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(&fc.refundCalls))
}

func TestOperator_IgnoresNonBettingState(t *testing.T) {
	defer withFixedNow(1500)()
	fc := &fakeChain{}
	op := New(fc, store.New(), Options{})

	op.onRoundUpdate(context.Background(), &store.RoundPayload{
		RoundID: 1, StateLabel: "DRAWING", MinDrawTime: 1000, MaxDrawTime: 2000,
	})
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&fc.drawCalls))
}

func TestOperator_SingleSlotGuard_DuplicateNotificationIgnored(t *testing.T) {
	defer withFixedNow(1500)()
	fc := &fakeChain{block: make(chan struct{})}
	op := New(fc, store.New(), Options{})

	round := &store.RoundPayload{RoundID: 1, StateLabel: "BETTING", MinDrawTime: 1000, MaxDrawTime: 2000}
	op.onRoundUpdate(context.Background(), round)
	time.Sleep(20 * time.Millisecond) // let the first submission start and block
	op.onRoundUpdate(context.Background(), round)
	time.Sleep(20 * time.Millisecond)

	require.EqualValues(t, 1, atomic.LoadInt32(&fc.drawCalls))
	close(fc.block)
}
