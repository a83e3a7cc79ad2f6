package chainclient

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func sampleConfigFields(includeMinParticipants bool) []interface{} {
	fields := []interface{}{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
		uint64(500),
		uint64(300),
		big.NewInt(1_000_000_000_000_000),
		uint64(3600),
		uint64(60),
		uint64(7200),
		uint64(300),
	}
	if includeMinParticipants {
		fields = append(fields, uint64(2))
	}
	return fields
}

func TestDecodeConfigTuple_ElevenFields(t *testing.T) {
	cfg, err := decodeConfigTuple(sampleConfigFields(true))
	require.NoError(t, err)
	require.Equal(t, 0, cfg.SchemaVersion)
	require.Equal(t, uint64(2), cfg.MinParticipants)
	require.Equal(t, uint64(500), cfg.PublisherCommission)
}

func TestDecodeConfigTuple_TenFields_DefaultsMinParticipants(t *testing.T) {
	cfg, err := decodeConfigTuple(sampleConfigFields(false))
	require.NoError(t, err)
	require.Equal(t, 1, cfg.SchemaVersion)
	require.Equal(t, uint64(0), cfg.MinParticipants)
}

func TestDecodeConfigTuple_NamedStruct(t *testing.T) {
	type configStruct struct {
		PublisherAddr       common.Address
		SparsityAddr        common.Address
		OperatorAddr        common.Address
		PublisherCommission uint64
		SparsityCommission  uint64
		MinBet              *big.Int
		BettingDuration     uint64
		MinDrawDelay        uint64
		MaxDrawDelay        uint64
		MinEndTimeExtension uint64
		MinParticipants     uint64
	}
	s := configStruct{
		PublisherAddr:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		SparsityAddr:        common.HexToAddress("0x2222222222222222222222222222222222222222"),
		OperatorAddr:        common.HexToAddress("0x3333333333333333333333333333333333333333"),
		PublisherCommission: 500,
		SparsityCommission:  300,
		MinBet:              big.NewInt(1),
		BettingDuration:     3600,
		MinDrawDelay:        60,
		MaxDrawDelay:        7200,
		MinEndTimeExtension: 300,
		MinParticipants:     5,
	}
	cfg, err := decodeConfigTuple([]interface{}{s})
	require.NoError(t, err)
	require.Equal(t, uint64(5), cfg.MinParticipants)
}

func TestDecodeRoundTuple_ZeroRoundIDIsNoRound(t *testing.T) {
	fields := []interface{}{
		uint64(0), uint64(0), uint64(0), uint64(0), uint64(0),
		big.NewInt(0), uint64(0), common.Address{}, big.NewInt(0), big.NewInt(0), big.NewInt(0), uint64(0),
	}
	round, err := decodeRoundTuple(fields)
	require.NoError(t, err)
	require.Nil(t, round)
}

func TestDecodeRoundTuple_ZeroWinnerNormalisedToAbsent(t *testing.T) {
	fields := []interface{}{
		uint64(1), uint64(100), uint64(200), uint64(250), uint64(400),
		big.NewInt(5000), uint64(3), common.Address{}, big.NewInt(100), big.NewInt(50), big.NewInt(4850), uint64(1),
	}
	round, err := decodeRoundTuple(fields)
	require.NoError(t, err)
	require.NotNil(t, round)
	require.Nil(t, round.Winner)
}

func TestDecodeRoundTuple_NonZeroWinner(t *testing.T) {
	winner := common.HexToAddress("0x9999999999999999999999999999999999999999")
	fields := []interface{}{
		uint64(1), uint64(100), uint64(200), uint64(250), uint64(400),
		big.NewInt(5000), uint64(3), winner, big.NewInt(100), big.NewInt(50), big.NewInt(4850), uint64(3),
	}
	round, err := decodeRoundTuple(fields)
	require.NoError(t, err)
	require.NotNil(t, round.Winner)
	require.Equal(t, winner, *round.Winner)
}
