package handshake

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crushmatch/matchd/internal/wire"
)

func TestHandshakeDerivesSharedKey(t *testing.T) {
	responderPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var link bytes.Buffer
	initiatorKey, err := Initiate(&link, &responderPriv.PublicKey)
	require.NoError(t, err)

	responderKey, err := Respond(&link, responderPriv)
	require.NoError(t, err)

	require.Equal(t, initiatorKey, responderKey)
	require.Len(t, initiatorKey, 32)
}

func TestHandshakeKeyUsableForFraming(t *testing.T) {
	responderPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var link bytes.Buffer
	initiatorKey, err := Initiate(&link, &responderPriv.PublicKey)
	require.NoError(t, err)
	responderKey, err := Respond(&link, responderPriv)
	require.NoError(t, err)

	var traffic bytes.Buffer
	require.NoError(t, wire.Send(&traffic, initiatorKey, wire.Record{Type: wire.Normal, Content: []byte("hi")}))
	rec, err := wire.Recv(&traffic, responderKey)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), rec.Content)
}

func TestRespondRejectsWrongKey(t *testing.T) {
	responderPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var link bytes.Buffer
	_, err = Initiate(&link, &responderPriv.PublicKey)
	require.NoError(t, err)

	_, err = Respond(&link, otherPriv)
	require.Error(t, err)
}

func TestRespondShortReadIsError(t *testing.T) {
	var link bytes.Buffer
	link.Write([]byte("too short"))

	responderPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = Respond(&link, responderPriv)
	require.Error(t, err)
}
