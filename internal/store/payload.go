package store

import "sort"

// RoundPayload is the stable wire shape for a round_update event and for
// every HTTP endpoint that serializes the current round.
type RoundPayload struct {
	RoundID             uint64 `json:"round_id"`
	State               uint8  `json:"state"`
	StateLabel          string `json:"state_label"`
	StateName           string `json:"state_name"`
	StartTime           uint64 `json:"start_time"`
	EndTime             uint64 `json:"end_time"`
	MinDrawTime         uint64 `json:"min_draw_time"`
	MaxDrawTime         uint64 `json:"max_draw_time"`
	TotalPot            Wei    `json:"total_pot"`
	ParticipantCount    uint64 `json:"participant_count"`
	Winner              string `json:"winner,omitempty"`
	PublisherCommission Wei    `json:"publisher_commission"`
	SparsityCommission  Wei    `json:"sparsity_commission"`
	WinnerPrize         Wei    `json:"winner_prize"`
	ExtensionsCount     uint64 `json:"extensions_count"`
}

func serializeRound(r *LotteryRound) *RoundPayload {
	if r == nil {
		return nil
	}
	p := &RoundPayload{
		RoundID:             r.RoundID,
		State:               uint8(r.State),
		StateLabel:          r.State.Label(),
		StateName:           r.State.String(),
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		MinDrawTime:         r.MinDrawTime,
		MaxDrawTime:         r.MaxDrawTime,
		TotalPot:            r.TotalPot,
		ParticipantCount:    r.ParticipantCount,
		PublisherCommission: r.PublisherCommission,
		SparsityCommission:  r.SparsityCommission,
		WinnerPrize:         r.WinnerPrize,
		ExtensionsCount:     r.ExtensionsCount,
	}
	if r.Winner != nil {
		p.Winner = r.Winner.Hex()
	}
	return p
}

// ParticipantsPayload is the stable shape for participants_update and the
// participants HTTP endpoint: entries sorted by total_amount descending.
type ParticipantsPayload struct {
	Participants      []ParticipantSummary `json:"participants"`
	TotalParticipants int                  `json:"total_participants"`
}

func sortedParticipants(m map[string]ParticipantSummary) []ParticipantSummary {
	out := make([]ParticipantSummary, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TotalAmount.Cmp(out[j].TotalAmount.Int) > 0
	})
	return out
}

// HistoryPayload is the stable shape for history_update and /api/history.
type HistoryPayload struct {
	Rounds []RoundSnapshot `json:"rounds"`
}

func sortedHistory(items []RoundSnapshot) []RoundSnapshot {
	out := append([]RoundSnapshot(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RoundID > out[j].RoundID })
	return out
}

func sortedFeed(items []LiveFeedItem) []LiveFeedItem {
	out := append([]LiveFeedItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoundID != out[j].RoundID {
			return out[i].RoundID > out[j].RoundID
		}
		if out[i].EventTime != out[j].EventTime {
			return out[i].EventTime > out[j].EventTime
		}
		return out[i].Sequence > out[j].Sequence
	})
	return out
}

// ConfigPayload is the stable shape for config_update and the contract
// config HTTP endpoint.
type ConfigPayload struct {
	PublisherAddr       string `json:"publisher_addr"`
	SparsityAddr        string `json:"sparsity_addr"`
	OperatorAddr        string `json:"operator_addr"`
	PublisherCommission uint64 `json:"publisher_commission"`
	SparsityCommission  uint64 `json:"sparsity_commission"`
	MinBet              Wei    `json:"min_bet"`
	BettingDuration     uint64 `json:"betting_duration"`
	MinDrawDelay        uint64 `json:"min_draw_delay"`
	MaxDrawDelay        uint64 `json:"max_draw_delay"`
	MinEndTimeExtension uint64 `json:"min_end_time_extension"`
	MinParticipants     uint64 `json:"min_participants"`
}

func serializeConfig(c *ContractConfig) *ConfigPayload {
	if c == nil {
		return nil
	}
	return &ConfigPayload{
		PublisherAddr:       c.PublisherAddr.Hex(),
		SparsityAddr:        c.SparsityAddr.Hex(),
		OperatorAddr:        c.OperatorAddr.Hex(),
		PublisherCommission: c.PublisherCommission,
		SparsityCommission:  c.SparsityCommission,
		MinBet:              c.MinBet,
		BettingDuration:     c.BettingDuration,
		MinDrawDelay:        c.MinDrawDelay,
		MaxDrawDelay:        c.MaxDrawDelay,
		MinEndTimeExtension: c.MinEndTimeExtension,
		MinParticipants:     c.MinParticipants,
	}
}
