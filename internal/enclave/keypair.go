// Package enclave generates the in-memory SECP384R1 identity key, produces
// attestation documents binding it to the enclave, and decrypts the
// operator's ECIES-wrapped private key exactly once.
package enclave

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

// KeyPair is the enclave's own identity key, generated fresh on startup and
// held only in memory — it is never written to disk or exported whole.
type KeyPair struct {
	priv *ecdsa.PrivateKey
}

// Generate creates a fresh SECP384R1 keypair.
func Generate() (*KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("enclave: generate keypair: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// Private returns the raw private key, used only by the ECIES decrypt path.
func (k *KeyPair) Private() *ecdsa.PrivateKey {
	return k.priv
}

// PublicKeyDER returns the DER-encoded SubjectPublicKeyInfo, as embedded in
// attestation documents.
func (k *KeyPair) PublicKeyDER() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("enclave: marshal public key: %w", err)
	}
	return der, nil
}

// PublicKeyPEM renders the public key as a PEM block for /api/get_pub_key.
func (k *KeyPair) PublicKeyPEM() (string, error) {
	der, err := k.PublicKeyDER()
	if err != nil {
		return "", err
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// PublicKeyHex renders the public key as 0x04 || X(48) || Y(48), 97 bytes /
// 194 hex characters, the uncompressed SEC1 point encoding.
func (k *KeyPair) PublicKeyHex() string {
	uncompressed := elliptic.Marshal(elliptic.P384(), k.priv.PublicKey.X, k.priv.PublicKey.Y)
	return "0x" + hex.EncodeToString(uncompressed)
}
