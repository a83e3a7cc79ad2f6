package enclave

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

// encryptForTest constructs a wire-format ciphertext the way the operator's
// own ECIES implementation would, so DecryptECIES can be exercised without
// a second language's implementation available in this repo.
func encryptForTest(t *testing.T, recipientPub *ecdsa.PublicKey, plaintext []byte) []byte {
	t.Helper()
	curve := elliptic.P384()
	ephPriv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	ephPub := elliptic.Marshal(curve, ephPriv.PublicKey.X, ephPriv.PublicKey.Y)

	sx, _ := curve.ScalarMult(recipientPub.X, recipientPub.Y, ephPriv.D.Bytes())
	aesKey, hmacKey, err := deriveKeys(sx.Bytes())
	require.NoError(t, err)

	nonce := make([]byte, gcmNonceLen)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	block, err := aes.NewCipher(aesKey)
	require.NoError(t, err)
	gcmMode, err := cipher.NewGCM(block)
	require.NoError(t, err)
	aesCiphertext := gcmMode.Seal(nil, nonce, plaintext, nil)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ephPub)
	mac.Write(nonce)
	mac.Write(aesCiphertext)
	tag := mac.Sum(nil)

	out := append([]byte{}, ephPub...)
	out = append(out, nonce...)
	out = append(out, aesCiphertext...)
	out = append(out, tag...)
	return out
}

func TestECIES_RoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	plaintext := []byte("0x1111111111111111111111111111111111111111111111111111111111111111")
	ct := encryptForTest(t, &kp.Private().PublicKey, plaintext)

	got, err := DecryptECIES(ct, kp.Private())
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestECIES_SingleByteMutation_FailsHMAC(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	ct := encryptForTest(t, &kp.Private().PublicKey, []byte("secret key material"))
	ct[len(ct)-1] ^= 0xFF // flip every bit of the last HMAC tag byte

	_, err = DecryptECIES(ct, kp.Private())
	require.Error(t, err)
}

func TestECIES_MutatedCiphertext_FailsHMACBeforeGCM(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	ct := encryptForTest(t, &kp.Private().PublicKey, []byte("secret key material"))
	ct[uncompressedP384PointLen+gcmNonceLen] ^= 0xFF // flip a ciphertext byte

	_, err = DecryptECIES(ct, kp.Private())
	require.EqualError(t, err, "enclave: hmac verification failed")
}

func TestECIES_TooShortCiphertext(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	_, err = DecryptECIES([]byte("short"), kp.Private())
	require.Error(t, err)
}

func TestPublicKeyHex_Length(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	hexKey := kp.PublicKeyHex()
	// "0x" + 194 hex chars (97 bytes)
	require.Len(t, hexKey, 2+194)
	require.Equal(t, "0x04", hexKey[:4])
}
