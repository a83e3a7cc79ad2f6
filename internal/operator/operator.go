// Package operator drives round progression once a round becomes
// actionable: it watches the store's round_update feed and submits
// drawRound or refundRound through the chain client.
package operator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/lottery-enclave/internal/chainclient"
	"github.com/offchainlabs/lottery-enclave/internal/store"
)

type action string

const (
	actionDraw   action = "draw"
	actionRefund action = "refund"
)

type inflight struct {
	roundID uint64
	action  action
}

// Options tunes the operator's submission behavior.
type Options struct {
	WaitTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 180 * time.Second
	}
	return o
}

// ChainSubmitter is the subset of *chainclient.Client the operator needs,
// narrowed to an interface so tests can substitute a fake rather than
// standing up a real node connection.
type ChainSubmitter interface {
	DrawRound(ctx context.Context, roundID uint64) (common.Hash, error)
	RefundRound(ctx context.Context, roundID uint64) (common.Hash, error)
	WaitForTransaction(ctx context.Context, txHash common.Hash, timeout time.Duration) (*chainclient.Receipt, error)
}

// Operator is the passive agent that draws or refunds rounds once the
// chain's own timing windows permit it.
type Operator struct {
	cc   ChainSubmitter
	st   *store.Store
	opts Options

	current atomic.Pointer[inflight]
}

// New builds an Operator wired to a chain client and store.
func New(cc ChainSubmitter, st *store.Store, opts Options) *Operator {
	return &Operator{cc: cc, st: st, opts: opts.withDefaults()}
}

// now is overridable in tests.
var now = func() uint64 { return uint64(time.Now().Unix()) }

// Status reports what the operator is currently doing, backing
// /api/status and the "operator" component of /api/health.
func (o *Operator) Status() map[string]interface{} {
	cur := o.current.Load()
	if cur == nil {
		return map[string]interface{}{"busy": false}
	}
	return map[string]interface{}{
		"busy":     true,
		"round_id": cur.roundID,
		"action":   string(cur.action),
	}
}

// Start subscribes to round_update and reacts to every payload until ctx is
// cancelled.
func (o *Operator) Start(ctx context.Context) {
	ch := o.st.AddListener(store.EventRoundUpdate, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				round, ok := payload.(*store.RoundPayload)
				if !ok || round == nil {
					continue
				}
				o.onRoundUpdate(ctx, round)
			}
		}
	}()
}

func (o *Operator) onRoundUpdate(ctx context.Context, round *store.RoundPayload) {
	if round.StateLabel != "BETTING" {
		return
	}
	ts := now()
	switch {
	case ts < round.MinDrawTime:
		return
	case ts <= round.MaxDrawTime:
		o.trySubmit(ctx, round.RoundID, actionDraw)
	default:
		o.trySubmit(ctx, round.RoundID, actionRefund)
	}
}

// trySubmit enforces the single-slot guard: only one (roundID, action) may
// be in flight at a time. A duplicate notification for the same key while a
// submission is outstanding is a no-op, logged at debug.
func (o *Operator) trySubmit(ctx context.Context, roundID uint64, act action) {
	want := &inflight{roundID: roundID, action: act}
	if !o.current.CompareAndSwap(nil, want) {
		existing := o.current.Load()
		if existing != nil && existing.roundID == roundID && existing.action == act {
			log.Debug("operator: submission already in flight, ignoring duplicate", "round_id", roundID, "action", act)
			return
		}
		// A different action is in flight for a different round; let it
		// drain before starting a new one, rather than interleaving.
		log.Debug("operator: busy with another round, deferring", "round_id", roundID, "action", act)
		return
	}

	go func() {
		defer o.current.CompareAndSwap(want, nil)
		o.submit(ctx, roundID, act)
	}()
}

func (o *Operator) submit(ctx context.Context, roundID uint64, act action) {
	var (
		txHash common.Hash
		err    error
	)
	switch act {
	case actionDraw:
		txHash, err = o.cc.DrawRound(ctx, roundID)
	case actionRefund:
		txHash, err = o.cc.RefundRound(ctx, roundID)
	}
	if err != nil {
		log.Warn("operator: submission failed", "round_id", roundID, "action", act, "err", err)
		return
	}
	log.Info("operator: submitted", "round_id", roundID, "action", act, "tx", txHash.Hex())

	receipt, err := o.cc.WaitForTransaction(ctx, txHash, o.opts.WaitTimeout)
	if err != nil {
		log.Warn("operator: wait for transaction failed", "round_id", roundID, "action", act, "tx", txHash.Hex(), "err", err)
		return
	}
	log.Info("operator: transaction mined", "round_id", roundID, "action", act, "tx", txHash.Hex(), "status", receipt.Status)
}
