// Package store holds the single in-memory, thread-safe mirror of on-chain
// lottery state. It is the only component in this repository that owns
// mutable shared state; every other component either writes through its
// typed mutators or reads a defensive copy via its accessors.
package store

import "github.com/ethereum/go-ethereum/common"

// RoundState is the wire-contract enum shared with the contract. The integer
// values are load-bearing and must never be renumbered.
type RoundState uint8

const (
	RoundWaiting   RoundState = 0
	RoundBetting   RoundState = 1
	RoundDrawing   RoundState = 2
	RoundCompleted RoundState = 3
	RoundRefunded  RoundState = 4
)

func (s RoundState) String() string {
	switch s {
	case RoundWaiting:
		return "waiting"
	case RoundBetting:
		return "betting"
	case RoundDrawing:
		return "drawing"
	case RoundCompleted:
		return "completed"
	case RoundRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Label returns the upper-case enum name (e.g. "BETTING"), exposed as the
// serialized round's state_label and matched by the operator.
func (s RoundState) Label() string {
	switch s {
	case RoundWaiting:
		return "WAITING"
	case RoundBetting:
		return "BETTING"
	case RoundDrawing:
		return "DRAWING"
	case RoundCompleted:
		return "COMPLETED"
	case RoundRefunded:
		return "REFUNDED"
	default:
		return "UNKNOWN"
	}
}

// ContractConfig is a snapshot of the contract's tunable parameters.
type ContractConfig struct {
	PublisherAddr        common.Address `json:"publisherAddr"`
	SparsityAddr         common.Address `json:"sparsityAddr"`
	OperatorAddr         common.Address `json:"operatorAddr"`
	PublisherCommission  uint64         `json:"publisherCommission"` // basis points
	SparsityCommission   uint64         `json:"sparsityCommission"`  // basis points
	MinBet              Wei            `json:"minBet"`
	BettingDuration     uint64         `json:"bettingDuration"`    // seconds
	MinDrawDelay        uint64         `json:"minDrawDelay"`       // seconds
	MaxDrawDelay        uint64         `json:"maxDrawDelay"`       // seconds
	MinEndTimeExtension uint64         `json:"minEndTimeExtension"` // seconds
	MinParticipants     uint64         `json:"minParticipants"`
	// SchemaVersion records which on-chain getConfig tuple arity produced
	// this value: 0 for the 11-field layout, 1 for a legacy 10-field
	// layout missing MinParticipants (see internal/chainclient/abi.go).
	SchemaVersion int `json:"schemaVersion"`
}

// LotteryRound is the current-round snapshot. A nil *LotteryRound means "no
// active round" — callers must never substitute a zero-value struct for
// that case (Design Note: nullable aggregate modeled as a tagged variant).
type LotteryRound struct {
	RoundID             uint64         `json:"roundId"`
	StartTime           uint64         `json:"startTime"`
	EndTime             uint64         `json:"endTime"`
	MinDrawTime         uint64         `json:"minDrawTime"`
	MaxDrawTime         uint64         `json:"maxDrawTime"`
	TotalPot            Wei            `json:"totalPotWei"`
	ParticipantCount    uint64         `json:"participantCount"`
	Winner              *common.Address `json:"winner,omitempty"`
	PublisherCommission Wei            `json:"publisherCommissionWei"`
	SparsityCommission  Wei            `json:"sparsityCommissionWei"`
	WinnerPrize         Wei            `json:"winnerPrizeWei"`
	State               RoundState     `json:"state"`
	// ExtensionsCount is bumped by the event manager on EndTimeExtended and
	// surfaced as extensions_count in the serialized round (round_update,
	// /api/round/status) — resolves the open question on what to do with
	// that event without putting it on the live feed.
	ExtensionsCount uint64 `json:"extensionsCount"`
}

// ParticipantSummary aggregates one address's stake within the current round.
type ParticipantSummary struct {
	Address     string `json:"address"` // always lower-cased
	TotalAmount Wei    `json:"totalAmountWei"`
}

// RoundSnapshot is an immutable historical record created exactly once per
// terminal round transition.
type RoundSnapshot struct {
	EventType        string          `json:"eventType"`
	RoundID          uint64          `json:"roundId"`
	ParticipantCount uint64          `json:"participantCount"`
	TotalPot         Wei             `json:"totalPotWei"`
	FinishedAt       uint64          `json:"finishedAt"`
	Winner           *common.Address `json:"winner,omitempty"`
	WinnerPrize      Wei             `json:"winnerPrizeWei"`
	RefundReason     *string         `json:"refundReason,omitempty"`
}

// LiveFeedItem is a single human-readable activity entry derived from a
// whitelisted on-chain event.
type LiveFeedItem struct {
	EventType string                 `json:"eventType"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
	EventTime uint64                 `json:"eventTime"`
	RoundID   uint64                 `json:"roundId"`
	// Sequence breaks ties between two items with an identical
	// (round_id, event_time, event_type) identity at the same wall-clock
	// second; it is never exposed to clients.
	Sequence uint64 `json:"-"`
}
