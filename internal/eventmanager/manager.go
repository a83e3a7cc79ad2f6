package eventmanager

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/lottery-enclave/internal/chainclient"
	"github.com/offchainlabs/lottery-enclave/internal/store"
)

// Options tunes the three loops' cadence, all with the spec's defaults.
type Options struct {
	ConfigInterval     time.Duration
	RoundInterval      time.Duration
	StartBlockOffset   uint64
	EventPollInterval  time.Duration
	EventPollBackoff   time.Duration
}

func (o Options) withDefaults() Options {
	if o.ConfigInterval <= 0 {
		o.ConfigInterval = 10 * time.Second
	}
	if o.RoundInterval <= 0 {
		o.RoundInterval = 2 * time.Second
	}
	if o.StartBlockOffset == 0 {
		o.StartBlockOffset = 500
	}
	if o.EventPollInterval <= 0 {
		o.EventPollInterval = 200 * time.Millisecond
	}
	if o.EventPollBackoff <= 0 {
		o.EventPollBackoff = time.Second
	}
	return o
}

// Manager runs the three polling loops that keep the Store in sync with the
// chain client's view of the contract.
type Manager struct {
	cc   *chainclient.Client
	st   *store.Store
	opts Options
}

// New builds a Manager wired to a chain client and store.
func New(cc *chainclient.Client, st *store.Store, opts Options) *Manager {
	return &Manager{cc: cc, st: st, opts: opts.withDefaults()}
}

// Start launches the three loops as goroutines; each exits when ctx is
// cancelled.
func (m *Manager) Start(ctx context.Context) {
	go runEvery(ctx, m.opts.ConfigInterval, m.pollConfig)
	go runEvery(ctx, m.opts.RoundInterval, m.pollRound)
	go m.runEventLoop(ctx)
}

func (m *Manager) pollConfig(ctx context.Context) {
	cfg, err := m.cc.GetContractConfig(ctx)
	if err != nil {
		log.Warn("eventmanager: getConfig failed", "err", err)
		return
	}
	m.st.SetContractConfig(cfg)
}

func (m *Manager) pollRound(ctx context.Context) {
	round, err := m.cc.GetCurrentRound(ctx)
	if err != nil {
		log.Warn("eventmanager: getRound failed", "err", err)
		return
	}
	m.st.SetCurrentRound(round)
	if round == nil {
		return
	}
	participants, err := m.cc.GetParticipantSummaries(ctx, round.RoundID)
	if err != nil {
		log.Warn("eventmanager: getParticipants failed", "round_id", round.RoundID, "err", err)
		return
	}
	m.st.SyncParticipants(participants)
}

func (m *Manager) runEventLoop(ctx context.Context) {
	fromBlock := m.initialFromBlock(ctx)
	interval := m.opts.EventPollInterval

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		events, err := m.cc.GetEvents(ctx, fromBlock)
		if err != nil {
			log.Warn("eventmanager: getEvents failed", "from_block", fromBlock, "err", err)
			sleep(ctx, m.opts.EventPollBackoff)
			continue
		}

		for _, evt := range events {
			m.HandleEvent(evt)
		}

		if len(events) == 0 {
			interval = m.opts.EventPollBackoff
		} else {
			fromBlock = m.cc.LastSeenBlock() + 1
			interval = m.opts.EventPollInterval
		}

		sleep(ctx, interval)
	}
}

func (m *Manager) initialFromBlock(ctx context.Context) uint64 {
	health := m.cc.HealthCheck(ctx)
	latest, _ := health["latest_block"].(uint64)
	if latest < m.opts.StartBlockOffset {
		return 0
	}
	return latest - m.opts.StartBlockOffset
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
