package gateway

import (
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/offchainlabs/lottery-enclave/internal/enclave"
)

func (s *Server) handleHealth(c echo.Context) error {
	health := s.chain.HealthCheck(c.Request().Context())
	health["status"] = "ok"
	health["components"] = map[string]interface{}{"operator": s.operator.Status()}
	return c.JSON(http.StatusOK, health)
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"chain":    s.chain.HealthCheck(c.Request().Context()),
		"operator": s.operator.Status(),
		"round":    s.st.CurrentRound(),
	})
}

// handleRoundStatus serializes the current round. Before any round has ever
// existed on chain (cold boot against an empty contract), the store holds no
// round at all — the None side of the tagged variant — which this endpoint
// renders as the contract's own zero-value round rather than a JSON null, so
// a client always gets a round-shaped object to render.
func (s *Server) handleRoundStatus(c echo.Context) error {
	round := s.st.CurrentRound()
	if round == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"round_id":   0,
			"state":      0,
			"state_name": "waiting",
		})
	}
	return c.JSON(http.StatusOK, round)
}

func (s *Server) handleParticipants(max int) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload := s.st.Participants()
		if len(payload.Participants) > max {
			payload.Participants = payload.Participants[:max]
		}
		return c.JSON(http.StatusOK, payload)
	}
}

// handlePlayer reports a single address's stake and derived win rate
// (player_total / round_total_pot * 100) within the current round.
func (s *Server) handlePlayer(c echo.Context) error {
	addr := strings.ToLower(c.QueryParam("player"))
	if addr == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "player query parameter is required"})
	}

	round := s.st.CurrentRound()
	payload := s.st.Participants()

	playerTotal := big.NewInt(0)
	for _, p := range payload.Participants {
		if strings.ToLower(p.Address) == addr {
			playerTotal = p.TotalAmount.Int
			break
		}
	}

	var roundID uint64
	winRate := 0.0
	if round != nil {
		roundID = round.RoundID
		if round.TotalPot.Int != nil && round.TotalPot.Int.Sign() > 0 {
			f := new(big.Float).Quo(new(big.Float).SetInt(playerTotal), new(big.Float).SetInt(round.TotalPot.Int))
			f.Mul(f, big.NewFloat(100))
			winRate, _ = f.Float64()
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"player":         addr,
		"round_id":       roundID,
		"totalAmountWei": playerTotal.String(),
		"winRate":        winRate,
		"timestamp":      time.Now().Unix(),
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	h := s.st.History()
	completed, refunded := 0, 0
	for _, r := range h.Rounds {
		if r.EventType == "RoundRefunded" {
			refunded++
		} else {
			completed++
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rounds": h.Rounds,
		"summary": map[string]interface{}{
			"total_rounds":     len(h.Rounds),
			"completed_rounds": completed,
			"refunded_rounds":  refunded,
		},
	})
}

func (s *Server) handleActivities(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"activities": s.st.LiveFeed()})
}

func (s *Server) handleContractConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.st.Config())
}

func (s *Server) handleContractAddress(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"contract_address": s.contract})
}

func (s *Server) handleAttestation(c echo.Context) error {
	doc, err := s.keys.Attestation()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build attestation document"})
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleGetPubKey(c echo.Context) error {
	pem, err := s.keys.PublicKeyPEM()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to encode public key"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"public_key_pem": pem,
		"public_key_hex": s.keys.PublicKeyHex(),
	})
}

type setOperatorKeyRequest struct {
	EncryptedKey string `json:"encrypted_private_key"`
}

// handleSetOperatorKey implements the one-shot key-injection endpoint: an
// already-set key and a rate-limited caller both return 403, a malformed
// request or ciphertext returns 400, and a derived-address mismatch returns
// 400 with both addresses so the caller can diagnose misconfiguration.
func (s *Server) handleSetOperatorKey(c echo.Context) error {
	remoteIP := c.RealIP()
	if !s.keys.Allow(remoteIP) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "rate limit exceeded"})
	}

	var req setOperatorKeyRequest
	if err := c.Bind(&req); err != nil || req.EncryptedKey == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "encrypted_private_key is required"})
	}

	operatorAddress, injErr := s.keys.SetOperatorKey(req.EncryptedKey)
	if injErr != nil {
		status := http.StatusBadRequest
		if injErr.Code == enclave.ErrAlreadySet {
			status = http.StatusForbidden
		}
		body := map[string]interface{}{"error": injErr.Message, "code": string(injErr.Code)}
		if injErr.ExpectedAddress != "" {
			body["expected_address"] = injErr.ExpectedAddress
		}
		if injErr.DerivedAddress != "" {
			body["derived_address"] = injErr.DerivedAddress
		}
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusOK, map[string]string{"operator_address": operatorAddress})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"version": version, "commit": commit})
}
