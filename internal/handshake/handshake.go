// Package handshake establishes the AES-256-GCM session key for one link,
// server<->client or client<->client. Both link types share the same
// one-round-trip, certificate-free protocol: the initiator wraps a fresh
// session key under the responder's RSA public key and writes it as a raw,
// unframed prefix; the responder unwraps it and both sides then speak
// wire.Record framing under that key.
package handshake

import (
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/crushmatch/matchd/internal/cryptoutil"
)

// rsaCiphertextSize is the wire size of a 2048-bit RSA-PKCS1v15 ciphertext.
// Every key in this system is 2048-bit, so this is fixed rather than derived
// from a key at hand.
const rsaCiphertextSize = 256

// Initiate generates a fresh session key, wraps it under responderPub, and
// writes the wrapped key as a raw prefix on conn. It returns the session key
// so the caller can immediately start framing traffic with it.
func Initiate(w io.Writer, responderPub *rsa.PublicKey) ([]byte, error) {
	sessionKey, err := cryptoutil.NewSessionKey()
	if err != nil {
		return nil, fmt.Errorf("handshake: generate session key: %w", err)
	}

	wrapped, err := cryptoutil.RSASeal(sessionKey, responderPub)
	if err != nil {
		return nil, fmt.Errorf("handshake: wrap session key: %w", err)
	}
	if len(wrapped) != rsaCiphertextSize {
		return nil, fmt.Errorf("handshake: unexpected wrapped key size %d", len(wrapped))
	}

	if _, err := w.Write(wrapped); err != nil {
		return nil, fmt.Errorf("handshake: write wrapped key: %w", err)
	}
	return sessionKey, nil
}

// Respond reads the raw RSA-wrapped session key prefix from r and unwraps it
// with ownPriv.
func Respond(r io.Reader, ownPriv *rsa.PrivateKey) ([]byte, error) {
	wrapped := make([]byte, rsaCiphertextSize)
	if _, err := io.ReadFull(r, wrapped); err != nil {
		return nil, fmt.Errorf("handshake: read wrapped key: %w", err)
	}

	sessionKey, err := cryptoutil.RSAOpen(wrapped, ownPriv)
	if err != nil {
		return nil, fmt.Errorf("handshake: unwrap session key: %w", err)
	}
	if len(sessionKey) < cryptoutil.SessionKeySize {
		return nil, fmt.Errorf("handshake: unwrapped key too short (%d bytes)", len(sessionKey))
	}
	return sessionKey[:cryptoutil.SessionKeySize], nil
}
