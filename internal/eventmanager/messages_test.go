package eventmanager

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMessage_RoundCreated(t *testing.T) {
	msg := BuildMessage("RoundCreated", map[string]interface{}{"roundId": big.NewInt(12)})
	require.Equal(t, "Round 12 created", msg)
}

func TestBuildMessage_BetPlaced(t *testing.T) {
	msg := BuildMessage("BetPlaced", map[string]interface{}{
		"better": "0xABCDEF0123456789ABCDEF0123456789ABCDEF01",
		"amount": big.NewInt(1_500_000_000_000_000_000),
	})
	require.Equal(t, "0xabcdef...ef01 placed a bet for 1.5000 ETH", msg)
}

func TestBuildMessage_RoundStateChanged(t *testing.T) {
	msg := BuildMessage("RoundStateChanged", map[string]interface{}{
		"roundId":      big.NewInt(3),
		"newStateName": "BETTING",
	})
	require.Equal(t, "Round 3 state transitioned to BETTING", msg)
}

func TestBuildMessage_RoundCompleted(t *testing.T) {
	msg := BuildMessage("RoundCompleted", map[string]interface{}{
		"roundId": big.NewInt(3),
		"winner":  "0xABCDEF0123456789ABCDEF0123456789ABCDEF01",
	})
	require.Equal(t, "Round 3 completed - winner: 0xabcdef...ef01", msg)
}

func TestBuildMessage_RoundRefunded_WithReason(t *testing.T) {
	msg := BuildMessage("RoundRefunded", map[string]interface{}{
		"roundId": big.NewInt(7),
		"reason":  "not enough participants",
	})
	require.Equal(t, "Round 7 refunded: not enough participants", msg)
}

func TestBuildMessage_RoundRefunded_NoReason(t *testing.T) {
	msg := BuildMessage("RoundRefunded", map[string]interface{}{"roundId": big.NewInt(7)})
	require.Equal(t, "Round 7 refunded", msg)
}

func TestBuildMessage_UnknownEvent_EmptyString(t *testing.T) {
	require.Equal(t, "", BuildMessage("SomethingElse", nil))
}

func TestWeiToEthStr_FourFractionalDigits(t *testing.T) {
	require.Equal(t, "0.0001", weiToEthStr(big.NewInt(100_000_000_000_000)))
	require.Equal(t, "0.0000", weiToEthStr(big.NewInt(0)))
}

func TestShortAddr(t *testing.T) {
	require.Equal(t, "0xabcdef...ef01", shortAddr("0xABCDEF0123456789ABCDEF0123456789ABCDEF01"))
}
