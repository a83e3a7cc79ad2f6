// Package eventmanager keeps internal/store consistent with the chain by
// running three independent polling loops and translating whitelisted
// contract events into human-readable live-feed entries.
package eventmanager

import (
	"fmt"
	"math/big"
	"strings"
)

// BuildMessage renders the deterministic, byte-for-byte message for a
// whitelisted event name and its decoded args. It is a pure function so
// message generation can be tested in isolation from the chain client.
func BuildMessage(eventName string, args map[string]interface{}) string {
	switch eventName {
	case "RoundCreated":
		return fmt.Sprintf("Round %s created", argUint(args, "roundId"))
	case "BetPlaced":
		return fmt.Sprintf("%s placed a bet for %s ETH", shortAddr(argString(args, "better")), weiToEthStr(argBigInt(args, "amount")))
	case "RoundStateChanged":
		return fmt.Sprintf("Round %s state transitioned to %s", argUint(args, "roundId"), argString(args, "newStateName"))
	case "RoundCompleted":
		return fmt.Sprintf("Round %s completed - winner: %s", argUint(args, "roundId"), shortAddr(argString(args, "winner")))
	case "RoundRefunded":
		reason := argString(args, "reason")
		if reason == "" {
			return fmt.Sprintf("Round %s refunded", argUint(args, "roundId"))
		}
		return fmt.Sprintf("Round %s refunded: %s", argUint(args, "roundId"), reason)
	default:
		return ""
	}
}

// shortAddr renders 0x + first 6 + "..." + last 4 of a lowercased address.
func shortAddr(addr string) string {
	addr = strings.ToLower(addr)
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	body := strings.TrimPrefix(addr, "0x")
	if len(body) < 10 {
		return addr
	}
	return "0x" + body[:6] + "..." + body[len(body)-4:]
}

var weiPerEth = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func weiToEthStr(wei *big.Int) string {
	if wei == nil {
		wei = big.NewInt(0)
	}
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth)
	return eth.Text('f', 4)
}

func argUint(args map[string]interface{}, key string) string {
	switch v := args[key].(type) {
	case *big.Int:
		return v.String()
	case uint64:
		return fmt.Sprintf("%d", v)
	default:
		return "0"
	}
}

func argBigInt(args map[string]interface{}, key string) *big.Int {
	if v, ok := args[key].(*big.Int); ok {
		return v
	}
	return big.NewInt(0)
}

func argString(args map[string]interface{}, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}
