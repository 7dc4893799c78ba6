package cryptoutil

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRSASealOpenRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	plaintext := []byte("32 bytes of session key material")[:32]
	ciphertext, err := RSASeal(plaintext, &priv.PublicKey)
	require.NoError(t, err)
	require.Len(t, ciphertext, priv.Size())

	got, err := RSAOpen(ciphertext, priv)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestRSAOpenWrongKeyFails(t *testing.T) {
	priv1, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv2, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ciphertext, err := RSASeal([]byte("session-key-material-32-bytes!!"), &priv1.PublicKey)
	require.NoError(t, err)

	_, err = RSAOpen(ciphertext, priv2)
	require.Error(t, err)
}

func TestAESSealOpenRoundTrip(t *testing.T) {
	key, err := NewSessionKey()
	require.NoError(t, err)

	plaintext := []byte("hello, rendezvous")
	blob, err := AESSeal(plaintext, key)
	require.NoError(t, err)
	require.Len(t, blob, IVSize+TagSize+len(plaintext))

	got, err := AESOpen(blob, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestAESOpenTamperedTagFails(t *testing.T) {
	key, err := NewSessionKey()
	require.NoError(t, err)

	blob, err := AESSeal([]byte("payload"), key)
	require.NoError(t, err)

	blob[IVSize] ^= 0xFF // flip a byte inside the tag
	_, err = AESOpen(blob, key)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestAESSealProducesFreshIV(t *testing.T) {
	key, err := NewSessionKey()
	require.NoError(t, err)

	a, err := AESSeal([]byte("same plaintext"), key)
	require.NoError(t, err)
	b, err := AESSeal([]byte("same plaintext"), key)
	require.NoError(t, err)

	require.NotEqual(t, a[:IVSize], b[:IVSize])
}

func TestFingerprintDeterministicAndShort(t *testing.T) {
	a := Fingerprint([]byte("session-key"))
	b := Fingerprint([]byte("session-key"))
	c := Fingerprint([]byte("different-key"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 12) // 6 bytes hex-encoded
}
