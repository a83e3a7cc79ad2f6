package enclave

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	uncompressedP384PointLen = 97 // 0x04 || X(48) || Y(48)
	gcmNonceLen              = 12
	hmacTagLen               = 32
)

// DecryptECIES reverses the bit-exact ECIES-SECP384R1 wire format:
//
//	ephemeral_pubkey(97) || nonce(12) || aes_gcm_ciphertext(|pt|+16) || hmac(32)
//
// The HMAC covers ephemeral_pubkey || nonce || aes_ciphertext_with_tag and
// MUST be verified before AES-GCM decryption is attempted.
func DecryptECIES(ciphertext []byte, staticPriv *ecdsa.PrivateKey) ([]byte, error) {
	minLen := uncompressedP384PointLen + gcmNonceLen + hmacTagLen
	if len(ciphertext) < minLen {
		return nil, fmt.Errorf("enclave: ciphertext too short (%d bytes)", len(ciphertext))
	}

	ephPubBytes := ciphertext[:uncompressedP384PointLen]
	nonce := ciphertext[uncompressedP384PointLen : uncompressedP384PointLen+gcmNonceLen]
	tagStart := len(ciphertext) - hmacTagLen
	aesCiphertext := ciphertext[uncompressedP384PointLen+gcmNonceLen : tagStart]
	receivedTag := ciphertext[tagStart:]

	curve := elliptic.P384()
	ex, ey := elliptic.Unmarshal(curve, ephPubBytes)
	if ex == nil {
		return nil, fmt.Errorf("enclave: invalid ephemeral public key")
	}

	sharedX, _ := curve.ScalarMult(ex, ey, staticPriv.D.Bytes())
	aesKey, hmacKey, err := deriveKeys(sharedX.Bytes())
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ephPubBytes)
	mac.Write(nonce)
	mac.Write(aesCiphertext)
	expectedTag := mac.Sum(nil)
	if !hmac.Equal(expectedTag, receivedTag) {
		return nil, fmt.Errorf("enclave: hmac verification failed")
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("enclave: build aes cipher: %w", err)
	}
	gcmMode, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("enclave: build gcm mode: %w", err)
	}
	plaintext, err := gcmMode.Open(nil, nonce, aesCiphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("enclave: aes-gcm decrypt failed: %w", err)
	}
	return plaintext, nil
}

// deriveKeys runs HKDF-SHA256 twice over the ECDH shared secret with an
// empty salt, once per info string, each producing an independent 32-byte
// key.
func deriveKeys(sharedSecret []byte) (aesKey, hmacKey []byte, err error) {
	aesKey, err = hkdfExpand(sharedSecret, "ecies-aes-key")
	if err != nil {
		return nil, nil, err
	}
	hmacKey, err = hkdfExpand(sharedSecret, "ecies-hmac-key")
	if err != nil {
		return nil, nil, err
	}
	return aesKey, hmacKey, nil
}

func hkdfExpand(secret []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, []byte(info))
	out := make([]byte, 32)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("enclave: hkdf expand %q: %w", info, err)
	}
	return out, nil
}
