package chainclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		kind ErrorKind
	}{
		{"execution reverted: insufficient balance", KindRevert},
		{"replacement transaction underpriced", KindUnderpriced},
		{"nonce too low", KindNonceGap},
		{"context deadline exceeded", KindTimeout},
		{"connection refused", KindOther},
	}
	for _, tc := range cases {
		got := classify(errors.New(tc.msg))
		require.Equal(t, tc.kind, got.Kind, tc.msg)
	}
}

func TestClassify_Nil(t *testing.T) {
	require.Nil(t, classify(nil))
}

func TestSubmissionError_Unwrap(t *testing.T) {
	base := errors.New("execution reverted")
	wrapped := classify(base)
	require.ErrorIs(t, wrapped, base)
}
