package chainclient

import (
	"fmt"
	"math/big"
	"os"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/lottery-enclave/internal/store"
)

// structFields flattens a single bound-contract named-struct return value
// into its exported fields in declaration order, so the same decode path
// handles both ABI return shapes.
func structFields(v interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct {
		// Not a struct: treat the single element as already-flat (e.g. a
		// view call with exactly one scalar return).
		return []interface{}{v}, nil
	}
	out := make([]interface{}, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		out = append(out, rv.Field(i).Interface())
	}
	return out, nil
}

func loadABI(path string) (abi.ABI, error) {
	if path == "" {
		path = "./abi/lottery.json"
	}
	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("chainclient: open abi file %s: %w", path, err)
	}
	defer f.Close()
	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("chainclient: parse abi file %s: %w", path, err)
	}
	return parsed, nil
}

// decodeConfigTuple accepts the output of unpacking getConfig either as a
// single named-struct element or as a flat positional tuple, and handles
// both the 11-field and legacy 10-field (missing min_participants) shapes.
// See Design Note "Decode of positional tuples vs named structs".
func decodeConfigTuple(out []interface{}) (*store.ContractConfig, error) {
	fields, err := flattenTuple(out)
	if err != nil {
		return nil, err
	}

	switch len(fields) {
	case 11:
		cfg, err := buildConfig(fields)
		if err != nil {
			return nil, err
		}
		cfg.SchemaVersion = 0
		return cfg, nil
	case 10:
		// Legacy layout: insert a zero min_participants as the last field
		// so buildConfig can be shared across both schema versions.
		padded := append(append([]interface{}{}, fields...), uint64(0))
		cfg, err := buildConfig(padded)
		if err != nil {
			return nil, err
		}
		cfg.SchemaVersion = 1
		return cfg, nil
	default:
		return nil, fmt.Errorf("chainclient: getConfig returned %d fields, want 10 or 11", len(fields))
	}
}

func buildConfig(f []interface{}) (*store.ContractConfig, error) {
	if len(f) != 11 {
		return nil, fmt.Errorf("chainclient: buildConfig expects 11 fields, got %d", len(f))
	}
	publisher, err := asAddress(f[0])
	if err != nil {
		return nil, fmt.Errorf("publisherAddr: %w", err)
	}
	sparsity, err := asAddress(f[1])
	if err != nil {
		return nil, fmt.Errorf("sparsityAddr: %w", err)
	}
	operator, err := asAddress(f[2])
	if err != nil {
		return nil, fmt.Errorf("operatorAddr: %w", err)
	}
	publisherCommission, err := asUint64(f[3])
	if err != nil {
		return nil, fmt.Errorf("publisherCommission: %w", err)
	}
	sparsityCommission, err := asUint64(f[4])
	if err != nil {
		return nil, fmt.Errorf("sparsityCommission: %w", err)
	}
	minBet, err := asBigInt(f[5])
	if err != nil {
		return nil, fmt.Errorf("minBet: %w", err)
	}
	bettingDuration, err := asUint64(f[6])
	if err != nil {
		return nil, fmt.Errorf("bettingDuration: %w", err)
	}
	minDrawDelay, err := asUint64(f[7])
	if err != nil {
		return nil, fmt.Errorf("minDrawDelay: %w", err)
	}
	maxDrawDelay, err := asUint64(f[8])
	if err != nil {
		return nil, fmt.Errorf("maxDrawDelay: %w", err)
	}
	minEndTimeExtension, err := asUint64(f[9])
	if err != nil {
		return nil, fmt.Errorf("minEndTimeExtension: %w", err)
	}
	minParticipants, err := asUint64(f[10])
	if err != nil {
		return nil, fmt.Errorf("minParticipants: %w", err)
	}

	return &store.ContractConfig{
		PublisherAddr:       publisher,
		SparsityAddr:        sparsity,
		OperatorAddr:        operator,
		PublisherCommission: publisherCommission,
		SparsityCommission:  sparsityCommission,
		MinBet:              store.NewWei(minBet),
		BettingDuration:     bettingDuration,
		MinDrawDelay:        minDrawDelay,
		MaxDrawDelay:        maxDrawDelay,
		MinEndTimeExtension: minEndTimeExtension,
		MinParticipants:     minParticipants,
	}, nil
}

// decodeRoundTuple handles getRound's named-struct/positional-tuple duality
// the same way decodeConfigTuple does. round_id == 0 means "no round" and
// the caller should translate that to a nil *store.LotteryRound.
func decodeRoundTuple(out []interface{}) (*store.LotteryRound, error) {
	fields, err := flattenTuple(out)
	if err != nil {
		return nil, err
	}
	if len(fields) != 12 {
		return nil, fmt.Errorf("chainclient: getRound returned %d fields, want 12", len(fields))
	}

	roundID, err := asUint64(fields[0])
	if err != nil {
		return nil, fmt.Errorf("roundId: %w", err)
	}
	if roundID == 0 {
		return nil, nil
	}
	startTime, err := asUint64(fields[1])
	if err != nil {
		return nil, fmt.Errorf("startTime: %w", err)
	}
	endTime, err := asUint64(fields[2])
	if err != nil {
		return nil, fmt.Errorf("endTime: %w", err)
	}
	minDrawTime, err := asUint64(fields[3])
	if err != nil {
		return nil, fmt.Errorf("minDrawTime: %w", err)
	}
	maxDrawTime, err := asUint64(fields[4])
	if err != nil {
		return nil, fmt.Errorf("maxDrawTime: %w", err)
	}
	totalPot, err := asBigInt(fields[5])
	if err != nil {
		return nil, fmt.Errorf("totalPotWei: %w", err)
	}
	participantCount, err := asUint64(fields[6])
	if err != nil {
		return nil, fmt.Errorf("participantCount: %w", err)
	}
	winnerAddr, err := asAddress(fields[7])
	if err != nil {
		return nil, fmt.Errorf("winner: %w", err)
	}
	publisherCommission, err := asBigInt(fields[8])
	if err != nil {
		return nil, fmt.Errorf("publisherCommissionWei: %w", err)
	}
	sparsityCommission, err := asBigInt(fields[9])
	if err != nil {
		return nil, fmt.Errorf("sparsityCommissionWei: %w", err)
	}
	winnerPrize, err := asBigInt(fields[10])
	if err != nil {
		return nil, fmt.Errorf("winnerPrizeWei: %w", err)
	}
	state, err := asUint64(fields[11])
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}

	round := &store.LotteryRound{
		RoundID:             roundID,
		StartTime:           startTime,
		EndTime:             endTime,
		MinDrawTime:         minDrawTime,
		MaxDrawTime:         maxDrawTime,
		TotalPot:            store.NewWei(totalPot),
		ParticipantCount:    participantCount,
		PublisherCommission: store.NewWei(publisherCommission),
		SparsityCommission:  store.NewWei(sparsityCommission),
		WinnerPrize:         store.NewWei(winnerPrize),
		State:               store.RoundState(state),
	}
	// The zero address in winner is normalised to absent.
	if winnerAddr != (common.Address{}) {
		w := winnerAddr
		round.Winner = &w
	}
	return round, nil
}

// flattenTuple accepts either a single named-struct element (reflected via
// its exported fields) or a flat positional slice, and returns a flat slice
// of values either way.
func flattenTuple(out []interface{}) ([]interface{}, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("chainclient: empty abi unpack result")
	}
	if len(out) == 1 {
		return structFields(out[0])
	}
	return out, nil
}

func asAddress(v interface{}) (common.Address, error) {
	if a, ok := v.(common.Address); ok {
		return a, nil
	}
	return common.Address{}, fmt.Errorf("expected common.Address, got %T", v)
}

func asUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint8:
		return uint64(t), nil
	case *big.Int:
		return t.Uint64(), nil
	default:
		return 0, fmt.Errorf("expected numeric type, got %T", v)
	}
}

func asBigInt(v interface{}) (*big.Int, error) {
	switch t := v.(type) {
	case *big.Int:
		return t, nil
	case uint64:
		return new(big.Int).SetUint64(t), nil
	default:
		return nil, fmt.Errorf("expected *big.Int, got %T", v)
	}
}
