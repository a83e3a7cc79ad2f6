package eventmanager

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/lottery-enclave/internal/chainclient"
	"github.com/offchainlabs/lottery-enclave/internal/store"
)

// feedEligible is the set of events that become a live-feed entry in
// addition to whatever bookkeeping they trigger.
var feedEligible = map[string]bool{
	"RoundCreated":      true,
	"RoundStateChanged": true,
	"BetPlaced":         true,
	"RoundCompleted":    true,
	"RoundRefunded":     true,
}

// HandleEvent dispatches a single decoded chain event. It always re-emits
// the raw event to any blockchain_event listeners, then applies the
// feed/history/extensions-counter policy.
func (m *Manager) HandleEvent(evt chainclient.Event) {
	m.st.EmitBlockchainEvent(evt)

	if evt.Name == "EndTimeExtended" {
		newEndTime := argUint64FromAny(evt.Args, "newEndTime")
		roundID := argUint64FromAny(evt.Args, "roundId")
		m.st.IncrementExtensionsCount(roundID, newEndTime)
		return
	}

	switch evt.Name {
	case "MinBetAmountUpdated", "BettingDurationUpdated", "MinParticipantsUpdated":
		// Silently consumed; the next config refresh picks these up.
		return
	case "BetPlaced":
		if addr, ok := addressOf(evt.Args["better"]); ok {
			m.st.UpsertParticipant(addr, store.NewWei(argBigInt(evt.Args, "amount")))
		}
	}

	if !feedEligible[evt.Name] {
		return
	}

	msg := BuildMessage(evt.Name, evt.Args)
	m.st.AddLiveFeed(store.LiveFeedItem{
		EventType: evt.Name,
		Message:   msg,
		Details:   evt.Args,
		EventTime: evt.Timestamp,
		RoundID:   argUint64FromAny(evt.Args, "roundId"),
	})

	switch evt.Name {
	case "RoundCompleted":
		m.st.AddHistorySnapshot(completedSnapshot(evt))
	case "RoundRefunded":
		m.st.AddHistorySnapshot(refundedSnapshot(evt))
	}
}

func completedSnapshot(evt chainclient.Event) store.RoundSnapshot {
	snap := store.RoundSnapshot{
		EventType:        evt.Name,
		RoundID:          argUint64FromAny(evt.Args, "roundId"),
		ParticipantCount: argUint64FromAny(evt.Args, "participantCount"),
		TotalPot:         store.NewWei(argBigInt(evt.Args, "totalPot")),
		FinishedAt:       evt.Timestamp,
		WinnerPrize:      store.NewWei(argBigInt(evt.Args, "winnerPrize")),
	}
	if w, ok := evt.Args["winner"]; ok {
		if addr, ok := addressOf(w); ok {
			snap.Winner = &addr
		}
	}
	return snap
}

func refundedSnapshot(evt chainclient.Event) store.RoundSnapshot {
	snap := store.RoundSnapshot{
		EventType:        evt.Name,
		RoundID:          argUint64FromAny(evt.Args, "roundId"),
		ParticipantCount: argUint64FromAny(evt.Args, "participantCount"),
		TotalPot:         store.NewWei(argBigInt(evt.Args, "totalRefunded")),
		FinishedAt:       evt.Timestamp,
		WinnerPrize:      store.WeiFromInt64(0),
	}
	if reason := argString(evt.Args, "reason"); reason != "" {
		snap.RefundReason = &reason
	}
	return snap
}

func argUint64FromAny(args map[string]interface{}, key string) uint64 {
	switch v := args[key].(type) {
	case *big.Int:
		return v.Uint64()
	case uint64:
		return v
	default:
		return 0
	}
}

func addressOf(v interface{}) (addr common.Address, ok bool) {
	if a, isAddr := v.(common.Address); isAddr {
		return a, true
	}
	return addr, false
}
