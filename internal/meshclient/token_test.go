package meshclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenDeterministic(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	a := Token("alice|bob", key)
	b := Token("alice|bob", key)
	require.Equal(t, a, b)
	require.Len(t, a, 32)
}

func TestTokenOrderSensitive(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	uc := Token("alicebob", key)
	cu := Token("bobalice", key)
	require.NotEqual(t, uc, cu)
}

func TestTokenKeySensitive(t *testing.T) {
	a := Token("alicebob", []byte("key-one-aaaaaaaaaaaaaaaaaaaaaaaa"))
	b := Token("alicebob", []byte("key-two-bbbbbbbbbbbbbbbbbbbbbbbb"))
	require.NotEqual(t, a, b)
}

func TestTokenAgreesAcrossBothEndsOfALink(t *testing.T) {
	// The whole point of binding the token to the link's session key: both
	// ends hold the identical key, so both sides of a matching pair compute
	// the identical token independently.
	linkKey := []byte("shared-session-key-32-bytes-long")

	alice, crush := "alice", "bob"
	bobsOwn, bobsCrush := "bob", "alice"

	aliceTokenUC := Token(alice+crush, linkKey)
	bobTokenCU := Token(bobsCrush+bobsOwn, linkKey)
	require.Equal(t, aliceTokenUC, bobTokenCU)
}
