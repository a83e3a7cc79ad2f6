package enclave

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"
)

// Installer is the subset of *chainclient.Client the key-injection path
// needs: install the recovered key exactly once, and report whether that
// has already happened.
type Installer interface {
	InstallOperatorKey(key *ecdsa.PrivateKey) error
	HasOperatorKey() bool
}

// InjectionErrorCode distinguishes the 403/400 response shapes
// /api/set_operator_key must produce.
type InjectionErrorCode string

const (
	ErrAlreadySet    InjectionErrorCode = "already_set"
	ErrBadBase64     InjectionErrorCode = "bad_base64"
	ErrDecryptFailed InjectionErrorCode = "decrypt_failed"
	ErrBadFormat     InjectionErrorCode = "bad_format"
	ErrMismatch      InjectionErrorCode = "mismatch"
)

// InjectionError carries everything a gateway handler needs to build the
// exact response spec.md requires for each failure mode.
type InjectionError struct {
	Code            InjectionErrorCode
	Message         string
	ExpectedAddress string
	DerivedAddress  string
}

func (e *InjectionError) Error() string { return e.Message }

// Service ties the enclave's identity key, an attestation provider, and the
// one-shot operator-key installation path together, plus per-IP rate
// limiting for the injection endpoint.
type Service struct {
	kp               *KeyPair
	attestation      AttestationProvider
	installer        Installer
	expectedOperator common.Address

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewService wires the enclave identity key, attestation provider, and
// chain-client installer together.
func NewService(kp *KeyPair, attestation AttestationProvider, installer Installer, expectedOperator common.Address) *Service {
	return &Service{
		kp:               kp,
		attestation:      attestation,
		installer:        installer,
		expectedOperator: expectedOperator,
		limiters:         make(map[string]*rate.Limiter),
	}
}

// PublicKeyPEM exposes the enclave identity key as PEM.
func (s *Service) PublicKeyPEM() (string, error) { return s.kp.PublicKeyPEM() }

// PublicKeyHex exposes the enclave identity key as 0x04||X||Y hex.
func (s *Service) PublicKeyHex() string { return s.kp.PublicKeyHex() }

// Attestation builds the attestation document bound to the current
// operator address expectation (nil before installation) and the enclave's
// public key.
func (s *Service) Attestation() (*Document, error) {
	var operatorAddr interface{}
	if s.installer.HasOperatorKey() {
		operatorAddr = s.expectedOperator.Hex()
	}
	userData, err := json.Marshal(map[string]interface{}{
		"operator_address":  operatorAddr,
		"tls_public_key_hex": s.kp.PublicKeyHex(),
	})
	if err != nil {
		return nil, err
	}
	der, err := s.kp.PublicKeyDER()
	if err != nil {
		return nil, err
	}
	return s.attestation.Attest(userData, der)
}

// Allow applies a 5-attempts-per-minute-per-IP token bucket to
// /api/set_operator_key (resolves the rate-limiting open question).
func (s *Service) Allow(remoteIP string) bool {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[remoteIP]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/5), 5)
		s.limiters[remoteIP] = limiter
	}
	return limiter.Allow()
}

// SetOperatorKey runs the full one-shot injection sequence: already-set
// check, base64 decode, ECIES decrypt, hex-format validation, address
// derivation, and address-match comparison, installing the key on success.
func (s *Service) SetOperatorKey(encryptedB64 string) (operatorAddress string, injErr *InjectionError) {
	if s.installer.HasOperatorKey() {
		return "", &InjectionError{
			Code:            ErrAlreadySet,
			Message:         "Operator key already set",
			ExpectedAddress: s.expectedOperator.Hex(),
		}
	}

	raw, err := base64.StdEncoding.DecodeString(encryptedB64)
	if err != nil {
		return "", &InjectionError{Code: ErrBadBase64, Message: "invalid base64"}
	}

	plaintext, err := DecryptECIES(raw, s.kp.Private())
	if err != nil {
		return "", &InjectionError{Code: ErrDecryptFailed, Message: "decryption failed"}
	}

	hexKey := strings.TrimSpace(string(plaintext))
	if !isValidHexPrivateKey(hexKey) {
		return "", &InjectionError{Code: ErrBadFormat, Message: "invalid private key format"}
	}

	keyBytes, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return "", &InjectionError{Code: ErrBadFormat, Message: "invalid private key format"}
	}
	priv, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return "", &InjectionError{Code: ErrBadFormat, Message: "invalid private key format"}
	}

	derived := crypto.PubkeyToAddress(priv.PublicKey)
	if !strings.EqualFold(derived.Hex(), s.expectedOperator.Hex()) {
		return "", &InjectionError{
			Code:            ErrMismatch,
			Message:         "derived address does not match configured operator address",
			ExpectedAddress: s.expectedOperator.Hex(),
			DerivedAddress:  derived.Hex(),
		}
	}

	if err := s.installer.InstallOperatorKey(priv); err != nil {
		return "", &InjectionError{Code: ErrAlreadySet, Message: err.Error()}
	}
	log.Info("enclave: operator key installed", "operator_address", derived.Hex())
	return derived.Hex(), nil
}

func isValidHexPrivateKey(s string) bool {
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	body := strings.TrimPrefix(s, "0x")
	if len(body) != 64 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}
