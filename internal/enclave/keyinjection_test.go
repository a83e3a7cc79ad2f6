package enclave

import (
	"crypto/ecdsa"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type fakeInstaller struct {
	installed *ecdsa.PrivateKey
	rejectErr error
}

func (f *fakeInstaller) InstallOperatorKey(key *ecdsa.PrivateKey) error {
	if f.rejectErr != nil {
		return f.rejectErr
	}
	f.installed = key
	return nil
}

func (f *fakeInstaller) HasOperatorKey() bool { return f.installed != nil }

func encryptOperatorKey(t *testing.T, kp *KeyPair, hexPriv string) string {
	t.Helper()
	ct := encryptForTest(t, &kp.Private().PublicKey, []byte(hexPriv))
	return base64.StdEncoding.EncodeToString(ct)
}

func TestSetOperatorKey_Success(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	operatorPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	operatorAddr := crypto.PubkeyToAddress(operatorPriv.PublicKey)
	hexPriv := fmt.Sprintf("0x%x", crypto.FromECDSA(operatorPriv))

	installer := &fakeInstaller{}
	svc := NewService(kp, NewDummyProvider(), installer, operatorAddr)

	b64 := encryptOperatorKey(t, kp, hexPriv)
	addr, injErr := svc.SetOperatorKey(b64)
	require.Nil(t, injErr)
	require.Equal(t, operatorAddr.Hex(), addr)
	require.NotNil(t, installer.installed)
}

func TestSetOperatorKey_AlreadySet(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	installer := &fakeInstaller{}
	existing, _ := crypto.GenerateKey()
	installer.installed = existing

	svc := NewService(kp, NewDummyProvider(), installer, common.Address{})
	_, injErr := svc.SetOperatorKey("anything")
	require.NotNil(t, injErr)
	require.Equal(t, ErrAlreadySet, injErr.Code)
}

func TestSetOperatorKey_BadBase64(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	svc := NewService(kp, NewDummyProvider(), &fakeInstaller{}, common.Address{})
	_, injErr := svc.SetOperatorKey("not-valid-base64!!")
	require.NotNil(t, injErr)
	require.Equal(t, ErrBadBase64, injErr.Code)
}

func TestSetOperatorKey_DecryptFailure(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	svc := NewService(kp, NewDummyProvider(), &fakeInstaller{}, common.Address{})
	_, injErr := svc.SetOperatorKey(base64.StdEncoding.EncodeToString([]byte("too short to be valid ecies")))
	require.NotNil(t, injErr)
	require.Equal(t, ErrDecryptFailed, injErr.Code)
}

func TestSetOperatorKey_BadFormatAfterDecrypt(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	svc := NewService(kp, NewDummyProvider(), &fakeInstaller{}, common.Address{})

	b64 := encryptOperatorKey(t, kp, "not-a-hex-key")
	_, injErr := svc.SetOperatorKey(b64)
	require.NotNil(t, injErr)
	require.Equal(t, ErrBadFormat, injErr.Code)
}

func TestSetOperatorKey_AddressMismatch(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	operatorPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexPriv := fmt.Sprintf("0x%x", crypto.FromECDSA(operatorPriv))

	wrongExpected := common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	installer := &fakeInstaller{}
	svc := NewService(kp, NewDummyProvider(), installer, wrongExpected)

	b64 := encryptOperatorKey(t, kp, hexPriv)
	_, injErr := svc.SetOperatorKey(b64)
	require.NotNil(t, injErr)
	require.Equal(t, ErrMismatch, injErr.Code)
	require.False(t, installer.HasOperatorKey())
}

func TestAllow_RateLimitsPerIP(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	svc := NewService(kp, NewDummyProvider(), &fakeInstaller{}, common.Address{})

	allowed := 0
	for i := 0; i < 10; i++ {
		if svc.Allow("1.2.3.4") {
			allowed++
		}
	}
	require.LessOrEqual(t, allowed, 5)

	// A different IP has its own independent bucket.
	require.True(t, svc.Allow("5.6.7.8"))
}
