package chainclient

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies why a transaction submission failed, mirroring the
// string-matching classification the teacher applies to L1/L2 RPC errors
// (protocol/sol-implementation/assertion_chain.go).
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindRevert
	KindUnderpriced
	KindNonceGap
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindRevert:
		return "revert"
	case KindUnderpriced:
		return "underpriced"
	case KindNonceGap:
		return "nonce_gap"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// ErrNoOperatorKey is returned by any signing path when no operator key has
// been installed into the Client yet.
var ErrNoOperatorKey = errors.New("chainclient: no operator key installed")

// SubmissionError wraps a transaction submission failure with its
// classified Kind, so callers can decide whether a retry is sensible
// without re-parsing the underlying RPC error string themselves.
type SubmissionError struct {
	Kind ErrorKind
	Err  error
}

func (e *SubmissionError) Error() string {
	return "chainclient: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// classify matches the teacher's approach of string-matching node error
// messages rather than relying on typed RPC errors, since different clients
// (geth, erigon, reth) phrase the same failure differently.
func classify(err error) *SubmissionError {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "revert") || strings.Contains(msg, "execution reverted"):
		return &SubmissionError{Kind: KindRevert, Err: err}
	case strings.Contains(msg, "underpriced") || strings.Contains(msg, "replacement transaction"):
		return &SubmissionError{Kind: KindUnderpriced, Err: err}
	case strings.Contains(msg, "nonce too low") || strings.Contains(msg, "nonce too high") || strings.Contains(msg, "gap"):
		return &SubmissionError{Kind: KindNonceGap, Err: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "context canceled"):
		return &SubmissionError{Kind: KindTimeout, Err: err}
	default:
		return &SubmissionError{Kind: KindOther, Err: err}
	}
}
