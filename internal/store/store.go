package store

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultFeedCapacity    = 200
	defaultHistoryCapacity = 100
)

// Store is the single in-memory mirror of on-chain lottery state. All of its
// exported methods are safe for concurrent use; exactly one mutex guards the
// data, and every mutator releases it before fanning out notifications so a
// slow listener can never hold up a writer (§5 concurrency model).
type Store struct {
	mu sync.RWMutex

	currentRound *LotteryRound
	participants map[string]ParticipantSummary
	history      *ring[RoundSnapshot]
	liveFeed     *ring[LiveFeedItem]
	config       *ContractConfig

	seq uint64

	hub *listenerHub
}

// New builds an empty Store with default bounded-history/feed capacities.
func New() *Store {
	return &Store{
		participants: make(map[string]ParticipantSummary),
		history:      newRing[RoundSnapshot](defaultHistoryCapacity),
		liveFeed:     newRing[LiveFeedItem](defaultFeedCapacity),
		hub:          newListenerHub(),
	}
}

// AddListener registers a subscriber for eventType with a bounded mailbox.
func (s *Store) AddListener(eventType EventType, bufSize int) <-chan Payload {
	return s.hub.AddListener(eventType, bufSize)
}

// EmitBlockchainEvent re-emits a raw chain event to any blockchain_event
// listeners without touching any stored state.
func (s *Store) EmitBlockchainEvent(evt interface{}) {
	s.hub.emit(EventBlockchainEvent, evt)
}

// Bootstrap installs the initial config and round snapshot atomically, as
// performed once at startup before polling begins. It emits both
// config_update and round_update.
func (s *Store) Bootstrap(cfg *ContractConfig, round *LotteryRound) {
	s.mu.Lock()
	s.config = cfg
	s.currentRound = round
	s.participants = make(map[string]ParticipantSummary)
	s.mu.Unlock()

	s.hub.emit(EventConfigUpdate, serializeConfig(cfg))
	s.hub.emit(EventRoundUpdate, serializeRound(round))
}

// SetContractConfig replaces the cached config snapshot.
func (s *Store) SetContractConfig(cfg *ContractConfig) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	s.hub.emit(EventConfigUpdate, serializeConfig(cfg))
}

// SetCurrentRound replaces the current round. Passing nil is how a caller
// represents "no active round" — never substitute a zero-value round for
// this (Design Note: nullable aggregate as tagged variant). When the round
// ID changes, the participant map is cleared since participants are scoped
// to a single round.
func (s *Store) SetCurrentRound(round *LotteryRound) {
	s.mu.Lock()
	if round == nil || s.currentRound == nil || round.RoundID != s.currentRound.RoundID {
		s.participants = make(map[string]ParticipantSummary)
	}
	s.currentRound = round
	s.mu.Unlock()

	s.hub.emit(EventRoundUpdate, serializeRound(round))
}

// IncrementExtensionsCount bumps the current round's extension counter in
// place, used by the event manager's EndTimeExtended handling, and re-emits
// round_update so /api/round/status observers see the new count without the
// event landing on the live feed (resolves the EndTimeExtended open
// question).
func (s *Store) IncrementExtensionsCount(roundID uint64, newEndTime uint64) {
	s.mu.Lock()
	if s.currentRound == nil || s.currentRound.RoundID != roundID {
		s.mu.Unlock()
		return
	}
	s.currentRound.EndTime = newEndTime
	s.currentRound.ExtensionsCount++
	snap := *s.currentRound
	s.mu.Unlock()

	s.hub.emit(EventRoundUpdate, serializeRound(&snap))
}

// SyncParticipants replaces the full participant set for the current round.
func (s *Store) SyncParticipants(participants []ParticipantSummary) {
	m := make(map[string]ParticipantSummary, len(participants))
	for _, p := range participants {
		m[strings.ToLower(p.Address)] = p
	}
	s.mu.Lock()
	s.participants = m
	sorted := sortedParticipants(m)
	s.mu.Unlock()

	s.hub.emit(EventParticipantsUpdate, &ParticipantsPayload{
		Participants:      sorted,
		TotalParticipants: len(sorted),
	})
}

// UpsertParticipant adds amount to a single address's running total,
// creating the entry if absent. Used when a Bet event is observed and a full
// resync is unnecessary.
func (s *Store) UpsertParticipant(addr common.Address, amount Wei) {
	key := strings.ToLower(addr.Hex())
	s.mu.Lock()
	existing, ok := s.participants[key]
	if !ok {
		existing = ParticipantSummary{Address: key, TotalAmount: WeiFromInt64(0)}
	}
	existing.TotalAmount = NewWei(new(big.Int).Add(existing.TotalAmount.Int, amount.Int))
	s.participants[key] = existing
	sorted := sortedParticipants(s.participants)
	s.mu.Unlock()

	s.hub.emit(EventParticipantsUpdate, &ParticipantsPayload{
		Participants:      sorted,
		TotalParticipants: len(sorted),
	})
}

// AddHistorySnapshot appends an immutable record of a terminal round
// transition to the bounded history ring, evicting the oldest entry once
// capacity is reached.
func (s *Store) AddHistorySnapshot(snap RoundSnapshot) {
	s.mu.Lock()
	s.history.append(snap)
	items := sortedHistory(s.history.snapshot())
	s.mu.Unlock()

	s.hub.emit(EventHistoryUpdate, &HistoryPayload{Rounds: items})
}

// AddLiveFeed appends one activity entry to the bounded live-feed ring.
func (s *Store) AddLiveFeed(item LiveFeedItem) {
	s.mu.Lock()
	s.seq++
	item.Sequence = s.seq
	s.liveFeed.append(item)
	s.mu.Unlock()

	s.hub.emit(EventLiveFeed, &item)
}

// ClearAll resets the store to its zero state, keeping the current history
// and live-feed capacities. It emits no listener notifications.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.currentRound = nil
	s.participants = make(map[string]ParticipantSummary)
	s.history = newRing[RoundSnapshot](s.history.cap)
	s.liveFeed = newRing[LiveFeedItem](s.liveFeed.cap)
	s.config = nil
	s.mu.Unlock()
}

// SetFeedCapacity resizes the live-feed ring, keeping its newest entries.
func (s *Store) SetFeedCapacity(n int) {
	s.mu.Lock()
	s.liveFeed.resize(n)
	s.mu.Unlock()
}

// SetHistoryCapacity resizes the history ring, keeping its newest entries.
func (s *Store) SetHistoryCapacity(n int) {
	s.mu.Lock()
	s.history.resize(n)
	s.mu.Unlock()
}

// CurrentRound returns a serialized copy of the current round, or nil.
func (s *Store) CurrentRound() *RoundPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return serializeRound(s.currentRound)
}

// Config returns a serialized copy of the cached contract config, or nil.
func (s *Store) Config() *ConfigPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return serializeConfig(s.config)
}

// Participants returns a sorted defensive copy of the current participant set.
func (s *Store) Participants() *ParticipantsPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := sortedParticipants(s.participants)
	return &ParticipantsPayload{Participants: sorted, TotalParticipants: len(sorted)}
}

// History returns a sorted defensive copy of the bounded round history.
func (s *Store) History() *HistoryPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &HistoryPayload{Rounds: sortedHistory(s.history.snapshot())}
}

// LiveFeed returns a sorted defensive copy of the bounded live feed.
func (s *Store) LiveFeed() []LiveFeedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedFeed(s.liveFeed.snapshot())
}
