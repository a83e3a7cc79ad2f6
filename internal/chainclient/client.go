// Package chainclient talks to the lottery contract: reads its view
// functions, submits draw/refund transactions once an operator key has been
// installed, and tails its whitelisted event log.
package chainclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/offchainlabs/lottery-enclave/internal/store"
)

// whitelistedEvents is the exact event set GetEvents will decode; anything
// else emitted by the contract is ignored.
var whitelistedEvents = []string{
	"RoundCreated",
	"RoundStateChanged",
	"BetPlaced",
	"EndTimeExtended",
	"RoundCompleted",
	"RoundRefunded",
	"MinBetAmountUpdated",
	"BettingDurationUpdated",
	"MinParticipantsUpdated",
}

// Event is a single decoded, whitelisted contract event.
type Event struct {
	Name        string
	Args        map[string]interface{}
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Timestamp   uint64
}

// Receipt is the caller-facing summary of a mined transaction.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// Config holds the dial/ABI/gas parameters Initialize needs.
type Config struct {
	RPCURL         string
	ContractAddr   common.Address
	ABIPath        string
	ChainID        *big.Int
	GasMultiplier  float64
	GasPriceWei    *big.Int // nil means use the node's suggested price
}

// Client wraps an ethclient.Client and a bound contract instance.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	abi      abi.ABI
	addr     common.Address
	chainID  *big.Int
	gasMult  float64
	gasPrice *big.Int

	signer       atomic.Pointer[ecdsa.PrivateKey]
	lastSeen     atomic.Uint64
	blockTimeLRU *lru.Cache[uint64, uint64]
}

// Initialize dials the node, verifies the chain id, and loads the contract
// ABI. A chain id mismatch is treated as fatal misconfiguration.
func Initialize(ctx context.Context, cfg Config) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ethClient, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: dial")
	}

	gotChainID, err := ethClient.ChainID(dialCtx)
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: fetch chain id")
	}
	if cfg.ChainID != nil && gotChainID.Cmp(cfg.ChainID) != 0 {
		return nil, fmt.Errorf("chainclient: chain id mismatch: configured %s, node reports %s", cfg.ChainID, gotChainID)
	}

	parsedABI, err := loadABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[uint64, uint64](1024)
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: create block timestamp cache")
	}

	gasMult := cfg.GasMultiplier
	if gasMult <= 0 {
		gasMult = 1.15
	}

	c := &Client{
		eth:          ethClient,
		contract:     bind.NewBoundContract(cfg.ContractAddr, parsedABI, ethClient, ethClient, ethClient),
		abi:          parsedABI,
		addr:         cfg.ContractAddr,
		chainID:      gotChainID,
		gasMult:      gasMult,
		gasPrice:     cfg.GasPriceWei,
		blockTimeLRU: cache,
	}
	log.Info("chainclient initialized", "rpc", cfg.RPCURL, "contract", cfg.ContractAddr, "chain_id", gotChainID)
	return c, nil
}

// InstallOperatorKey installs the operator signing key exactly once. A
// second call is a no-op error, matching the one-shot injection contract.
func (c *Client) InstallOperatorKey(key *ecdsa.PrivateKey) error {
	if !c.signer.CompareAndSwap(nil, key) {
		return fmt.Errorf("chainclient: operator key already installed")
	}
	log.Info("chainclient: operator key installed", "address", crypto.PubkeyToAddress(key.PublicKey))
	return nil
}

// HasOperatorKey reports whether InstallOperatorKey has succeeded.
func (c *Client) HasOperatorKey() bool {
	return c.signer.Load() != nil
}

// GetContractConfig performs the view call getConfig and decodes either ABI
// return shape (named struct or positional tuple; 10- or 11-field layout).
func (c *Client) GetContractConfig(ctx context.Context) (*store.ContractConfig, error) {
	out, err := c.contract.Call(bindOpts(ctx), nil, "getConfig")
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: getConfig")
	}
	return decodeConfigTuple(out)
}

// GetCurrentRound performs the view call getRound. round_id == 0 means "no
// active round" and is reported as a nil *store.LotteryRound.
func (c *Client) GetCurrentRound(ctx context.Context) (*store.LotteryRound, error) {
	out, err := c.contract.Call(bindOpts(ctx), nil, "getRound")
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: getRound")
	}
	return decodeRoundTuple(out)
}

// GetParticipantSummaries calls getParticipants then getBetAmount per
// address, skipping zero-amount entries.
func (c *Client) GetParticipantSummaries(ctx context.Context, roundID uint64) ([]store.ParticipantSummary, error) {
	out, err := c.contract.Call(bindOpts(ctx), nil, "getParticipants", new(big.Int).SetUint64(roundID))
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: getParticipants")
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("chainclient: getParticipants returned %T, want []common.Address", out[0])
	}

	summaries := make([]store.ParticipantSummary, 0, len(addrs))
	for _, addr := range addrs {
		amountOut, err := c.contract.Call(bindOpts(ctx), nil, "getBetAmount", new(big.Int).SetUint64(roundID), addr)
		if err != nil {
			return nil, errors.Wrapf(err, "chainclient: getBetAmount(%s)", addr)
		}
		amount, err := asBigInt(amountOut[0])
		if err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			continue
		}
		summaries = append(summaries, store.ParticipantSummary{
			Address:     strings.ToLower(addr.Hex()),
			TotalAmount: store.NewWei(amount),
		})
	}
	return summaries, nil
}

// LastSeenBlock returns the highest block number GetEvents has returned an
// event from, so the caller can resume polling at LastSeenBlock()+1. It is
// non-decreasing across calls.
func (c *Client) LastSeenBlock() uint64 {
	return c.lastSeen.Load()
}

// GetEvents fetches whitelisted event logs starting at fromBlock, sorted by
// (block_number, transaction_hash, log_index).
func (c *Client) GetEvents(ctx context.Context, fromBlock uint64) ([]Event, error) {
	latest, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: fetch latest block number")
	}
	if fromBlock > latest {
		return nil, nil
	}

	topics := make([]common.Hash, 0, len(whitelistedEvents))
	byTopic := make(map[common.Hash]abi.Event, len(whitelistedEvents))
	for _, name := range whitelistedEvents {
		ev, ok := c.abi.Events[name]
		if !ok {
			continue
		}
		topics = append(topics, ev.ID)
		byTopic[ev.ID] = ev
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{c.addr},
		Topics:    [][]common.Hash{topics},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		if !isFilterUnsupported(err) {
			return nil, errors.Wrap(err, "chainclient: filter logs")
		}
		logs, err = c.getLogsFallback(ctx, query)
		if err != nil {
			return nil, err
		}
	}

	events := make([]Event, 0, len(logs))
	for _, lg := range logs {
		ev, ok := byTopic[lg.Topics[0]]
		if !ok {
			continue
		}
		args := make(map[string]interface{})
		if err := c.abi.UnpackIntoMap(args, ev.Name, lg.Data); err != nil {
			log.Warn("chainclient: skipping undecodable event log", "event", ev.Name, "block", lg.BlockNumber, "tx", lg.TxHash, "err", err)
			continue
		}
		for i, input := range indexedInputs(ev) {
			if i+1 >= len(lg.Topics) {
				continue
			}
			topic := lg.Topics[i+1]
			if input.Type.T == abi.AddressTy {
				args[input.Name] = common.BytesToAddress(topic.Bytes())
			} else {
				args[input.Name] = topic
			}
		}

		ts, err := c.blockTimestamp(ctx, lg.BlockNumber)
		if err != nil {
			return nil, err
		}

		events = append(events, Event{
			Name:        ev.Name,
			Args:        args,
			BlockNumber: lg.BlockNumber,
			TxHash:      lg.TxHash,
			LogIndex:    lg.Index,
			Timestamp:   ts,
		})
		if lg.BlockNumber > c.lastSeen.Load() {
			c.lastSeen.Store(lg.BlockNumber)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		if events[i].TxHash != events[j].TxHash {
			return events[i].TxHash.Hex() < events[j].TxHash.Hex()
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

func indexedInputs(ev abi.Event) abi.Arguments {
	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	return indexed
}

func isFilterUnsupported(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") || strings.Contains(msg, "filter not found") || strings.Contains(msg, "not supported")
}

// getLogsFallback is used when the node doesn't support eth_newFilter-style
// RPCs; it falls back to a direct eth_getLogs call, which FilterLogs already
// uses under the hood in this client library, but is kept as a distinct
// path so alternate transports can be substituted here.
func (c *Client) getLogsFallback(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "chainclient: eth_getLogs fallback")
	}
	return logs, nil
}

func (c *Client) blockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	if ts, ok := c.blockTimeLRU.Get(blockNumber); ok {
		return ts, nil
	}
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, errors.Wrapf(err, "chainclient: fetch header for block %d", blockNumber)
	}
	c.blockTimeLRU.Add(blockNumber, header.Time)
	return header.Time, nil
}

// DrawRound submits a drawWinner transaction for roundID.
func (c *Client) DrawRound(ctx context.Context, roundID uint64) (common.Hash, error) {
	return c.submit(ctx, "drawWinner", new(big.Int).SetUint64(roundID))
}

// RefundRound submits a refundRound transaction for roundID.
func (c *Client) RefundRound(ctx context.Context, roundID uint64) (common.Hash, error) {
	return c.submit(ctx, "refundRound", new(big.Int).SetUint64(roundID))
}

func (c *Client) submit(ctx context.Context, method string, args ...interface{}) (common.Hash, error) {
	key := c.signer.Load()
	if key == nil {
		return common.Hash{}, ErrNoOperatorKey
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "chainclient: build transactor")
	}
	opts.Context = ctx
	if c.gasPrice != nil {
		opts.GasPrice = new(big.Int).Set(c.gasPrice)
	}

	packed, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "chainclient: pack %s", method)
	}
	estimate, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: opts.From,
		To:   &c.addr,
		Data: packed,
	})
	if err != nil {
		return common.Hash{}, classify(err)
	}
	opts.GasLimit = uint64(float64(estimate) * c.gasMult)

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, classify(err)
	}
	return tx.Hash(), nil
}

// WaitForTransaction blocks until txHash is mined or timeout elapses. It
// polls by hash rather than using bind.WaitMined so callers never need to
// retain the original *types.Transaction for the lifetime of the wait.
func (c *Client) WaitForTransaction(ctx context.Context, txHash common.Hash, timeout time.Duration) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.pollReceipt(waitCtx, txHash)
}

func (c *Client) pollReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, classify(fmt.Errorf("timeout waiting for transaction %s: %w", txHash, ctx.Err()))
		case <-ticker.C:
			r, err := c.eth.TransactionReceipt(ctx, txHash)
			if err != nil {
				if errors.Is(err, ethereum.NotFound) {
					continue
				}
				return nil, errors.Wrap(err, "chainclient: fetch receipt")
			}
			return &Receipt{
				Status:      r.Status,
				BlockNumber: r.BlockNumber.Uint64(),
				GasUsed:     r.GasUsed,
			}, nil
		}
	}
}

// HealthCheck never returns an error to the caller; it reports status
// inline so the gateway can surface it verbatim in /api/health.
func (c *Client) HealthCheck(ctx context.Context) map[string]interface{} {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	latest, err := c.eth.BlockNumber(checkCtx)
	if err != nil {
		return map[string]interface{}{"status": "error", "detail": err.Error()}
	}
	return map[string]interface{}{"status": "ok", "latest_block": latest}
}

func bindOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}
