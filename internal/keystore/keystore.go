// Package keystore loads the long-term RSA key material matchd needs from
// disk. The server loads its private key once at startup; clients load the
// server's public key (distributed out-of-band, trust-on-first-use) and
// generate their own ephemeral key pair in memory.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// ClientKeyBits is the RSA modulus size every client generates for itself at
// startup.
const ClientKeyBits = 2048

// LoadPrivateKey reads a PEM-encoded PKCS1 RSA private key from path.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("keystore: %s is not valid PEM", path)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: parse private key in %s: %w", path, err)
	}
	return priv, nil
}

// LoadPublicKey reads a PEM-encoded PKCS1 RSA public key from path.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	return DecodePublicKeyPEM(raw)
}

// DecodePublicKeyPEM parses a PEM-encoded PKCS1 RSA public key held in
// memory, e.g. one just received in an AddPeer record's payload.
func DecodePublicKeyPEM(raw []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("keystore: not valid PEM")
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: parse public key: %w", err)
	}
	return pub, nil
}

// EncodePublicKeyPEM renders pub the same way it is expected on the wire
// inside InformPublicKey / AddPeer payloads.
func EncodePublicKeyPEM(pub *rsa.PublicKey) []byte {
	block := &pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(pub),
	}
	return pem.EncodeToMemory(block)
}

// GenerateClientKey creates a fresh RSA key pair for a client process. Every
// client generates its own on startup; only the public half ever leaves the
// process.
func GenerateClientKey() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, ClientKeyBits)
	if err != nil {
		return nil, fmt.Errorf("keystore: generate client key: %w", err)
	}
	return priv, nil
}

// WritePrivateKeyPEM persists priv to path as PEM-encoded PKCS1, matching the
// format LoadPrivateKey expects. It is used by tests that need a key file on
// disk; it is never called by the client or server's normal runtime path,
// both of which only read keys.
func WritePrivateKeyPEM(path string, priv *rsa.PrivateKey) error {
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("keystore: write %s: %w", path, err)
	}
	return nil
}

// WritePublicKeyPEM persists pub to path, matching LoadPublicKey's format.
func WritePublicKeyPEM(path string, pub *rsa.PublicKey) error {
	if err := os.WriteFile(path, EncodePublicKeyPEM(pub), 0o644); err != nil {
		return fmt.Errorf("keystore: write %s: %w", path, err)
	}
	return nil
}
