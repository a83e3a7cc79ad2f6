package store

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestSetCurrentRound_ClearsParticipantsOnRoundChange(t *testing.T) {
	s := New()
	s.SetCurrentRound(&LotteryRound{RoundID: 1, State: RoundBetting})
	s.SyncParticipants([]ParticipantSummary{
		{Address: "0xabc", TotalAmount: WeiFromInt64(100)},
	})
	require.Equal(t, 1, s.Participants().TotalParticipants)

	s.SetCurrentRound(&LotteryRound{RoundID: 2, State: RoundBetting})
	require.Equal(t, 0, s.Participants().TotalParticipants)
}

func TestSetCurrentRound_Nil_IsNoActiveRound(t *testing.T) {
	s := New()
	s.SetCurrentRound(&LotteryRound{RoundID: 1})
	s.SetCurrentRound(nil)
	require.Nil(t, s.CurrentRound())
}

func TestUpsertParticipant_AccumulatesAndSorts(t *testing.T) {
	s := New()
	s.SetCurrentRound(&LotteryRound{RoundID: 1})

	addrA := common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB := common.HexToAddress("0x2222222222222222222222222222222222222222")

	s.UpsertParticipant(addrA, WeiFromInt64(50))
	s.UpsertParticipant(addrB, WeiFromInt64(200))
	s.UpsertParticipant(addrA, WeiFromInt64(75))

	got := s.Participants().Participants
	require.Len(t, got, 2)
	require.Equal(t, addrB.Hex(), canonicalHex(got[0].Address))
	require.Equal(t, int64(200), got[0].TotalAmount.Int64())
	require.Equal(t, int64(125), got[1].TotalAmount.Int64())
}

func canonicalHex(lower string) string {
	return common.HexToAddress(lower).Hex()
}

func TestHistoryRing_EnforcesBoundedCapacity(t *testing.T) {
	s := New()
	s.SetHistoryCapacity(3)
	for i := uint64(1); i <= 5; i++ {
		s.AddHistorySnapshot(RoundSnapshot{RoundID: i, EventType: "completed"})
	}
	h := s.History()
	require.Len(t, h.Rounds, 3)
	// newest-first ordering, oldest two (1, 2) evicted
	require.Equal(t, []uint64{5, 4, 3}, []uint64{h.Rounds[0].RoundID, h.Rounds[1].RoundID, h.Rounds[2].RoundID})
}

func TestLiveFeed_SortedByRoundThenTimeThenSequence(t *testing.T) {
	s := New()
	s.AddLiveFeed(LiveFeedItem{RoundID: 1, EventTime: 100, EventType: "bet"})
	s.AddLiveFeed(LiveFeedItem{RoundID: 2, EventTime: 50, EventType: "bet"})
	s.AddLiveFeed(LiveFeedItem{RoundID: 2, EventTime: 50, EventType: "draw_requested"})

	feed := s.LiveFeed()
	require.Len(t, feed, 3)
	require.Equal(t, uint64(2), feed[0].RoundID)
	require.Equal(t, "draw_requested", feed[0].EventType)
	require.Equal(t, uint64(2), feed[1].RoundID)
	require.Equal(t, "bet", feed[1].EventType)
	require.Equal(t, uint64(1), feed[2].RoundID)
}

func TestLiveFeed_CapacityEviction(t *testing.T) {
	s := New()
	s.SetFeedCapacity(2)
	s.AddLiveFeed(LiveFeedItem{RoundID: 1, EventTime: 1})
	s.AddLiveFeed(LiveFeedItem{RoundID: 1, EventTime: 2})
	s.AddLiveFeed(LiveFeedItem{RoundID: 1, EventTime: 3})
	require.Len(t, s.LiveFeed(), 2)
}

func TestIncrementExtensionsCount_IgnoresStaleRound(t *testing.T) {
	s := New()
	s.SetCurrentRound(&LotteryRound{RoundID: 1, EndTime: 1000})
	s.IncrementExtensionsCount(99, 2000)
	require.Equal(t, uint64(1000), s.CurrentRound().EndTime)
	require.Equal(t, uint64(0), s.CurrentRound().ExtensionsCount)

	s.IncrementExtensionsCount(1, 2000)
	require.Equal(t, uint64(2000), s.CurrentRound().EndTime)
	require.Equal(t, uint64(1), s.CurrentRound().ExtensionsCount)
}

func TestAddListener_ReceivesEmittedPayloads(t *testing.T) {
	s := New()
	ch := s.AddListener(EventRoundUpdate, 4)
	s.SetCurrentRound(&LotteryRound{RoundID: 7})

	select {
	case p := <-ch:
		payload, ok := p.(*RoundPayload)
		require.True(t, ok)
		require.Equal(t, uint64(7), payload.RoundID)
	default:
		t.Fatal("expected a buffered round_update payload")
	}
}

func TestAddListener_DropsOldestWhenMailboxFull(t *testing.T) {
	s := New()
	ch := s.AddListener(EventLiveFeed, 1)

	s.AddLiveFeed(LiveFeedItem{RoundID: 1, EventType: "first"})
	s.AddLiveFeed(LiveFeedItem{RoundID: 1, EventType: "second"})

	item := (<-ch).(*LiveFeedItem)
	require.Equal(t, "second", item.EventType)
}
