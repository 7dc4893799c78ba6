// Package cryptoutil wraps the primitive operations every link in matchd
// relies on: RSA key wrap/unwrap, AES-256-GCM seal/open, and the hashes used
// for diagnostics and token binding.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// SessionKeySize is the length in bytes of an AES-256-GCM session key.
const SessionKeySize = 32

// IVSize is the length in bytes of the random nonce prefixed to every sealed blob.
const IVSize = 12

// TagSize is the length in bytes of the GCM authentication tag.
const TagSize = 16

var (
	// ErrAuthFailed is returned by AESOpen when the GCM tag does not verify.
	ErrAuthFailed = errors.New("cryptoutil: authentication failed")
)

// RSASeal PKCS#1 v1.5 encrypts plaintext under pub. The result is exactly
// pub.Size() bytes. plaintext must be at most pub.Size()-11 bytes.
func RSASeal(plaintext []byte, pub *rsa.PublicKey) ([]byte, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: rsa seal: %w", err)
	}
	return ciphertext, nil
}

// RSAOpen is the inverse of RSASeal.
func RSAOpen(ciphertext []byte, priv *rsa.PrivateKey) ([]byte, error) {
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: rsa open: %w", err)
	}
	return plaintext, nil
}

// AESSeal encrypts plaintext under a fresh random IV with AES-256-GCM and
// empty AAD. The returned blob is iv(12) || tag(16) || ciphertext, matching
// the on-wire layout every record uses.
func AESSeal(plaintext []byte, key []byte) ([]byte, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("cryptoutil: session key must be %d bytes, got %d", SessionKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: gcm: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("cryptoutil: iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, IVSize+TagSize+len(ciphertext))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// AESOpen authenticates and decrypts a blob shaped like AESSeal's output
// (iv || tag || ciphertext). It returns ErrAuthFailed on any tag mismatch.
func AESOpen(blob []byte, key []byte) ([]byte, error) {
	if len(key) != SessionKeySize {
		return nil, fmt.Errorf("cryptoutil: session key must be %d bytes, got %d", SessionKeySize, len(key))
	}
	if len(blob) < IVSize+TagSize {
		return nil, ErrAuthFailed
	}

	iv := blob[:IVSize]
	tag := blob[IVSize : IVSize+TagSize]
	ciphertext := blob[IVSize+TagSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: gcm: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// NewSessionKey returns SessionKeySize fresh random bytes.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("cryptoutil: session key: %w", err)
	}
	return key, nil
}

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Fingerprint returns a short, non-reversible hex fingerprint of data,
// suitable for diagnostic log lines (e.g. "session key established,
// fingerprint=a91c3f07d2e4"). It must never be used as a cryptographic binding
// value; it exists purely so two log lines on either side of a link can be
// eyeballed for a match without printing key material.
func Fingerprint(data []byte) string {
	h, err := blake2b.New(6, nil)
	if err != nil {
		// blake2b.New only fails for an out-of-range size or keyed hash
		// misuse, neither of which applies here.
		panic(err)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
