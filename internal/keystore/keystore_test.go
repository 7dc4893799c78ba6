package keystore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateWriteLoadPrivateKeyRoundTrip(t *testing.T) {
	priv, err := GenerateClientKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "server.priv")
	require.NoError(t, WritePrivateKeyPEM(path, priv))

	loaded, err := LoadPrivateKey(path)
	require.NoError(t, err)
	require.Equal(t, priv.D, loaded.D)
	require.Equal(t, priv.N, loaded.N)
}

func TestGenerateWriteLoadPublicKeyRoundTrip(t *testing.T) {
	priv, err := GenerateClientKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "server.pub")
	require.NoError(t, WritePublicKeyPEM(path, &priv.PublicKey))

	loaded, err := LoadPublicKey(path)
	require.NoError(t, err)
	require.Equal(t, priv.PublicKey.N, loaded.N)
	require.Equal(t, priv.PublicKey.E, loaded.E)
}

func TestDecodePublicKeyPEMRoundTripsThroughEncode(t *testing.T) {
	priv, err := GenerateClientKey()
	require.NoError(t, err)

	encoded := EncodePublicKeyPEM(&priv.PublicKey)
	decoded, err := DecodePublicKeyPEM(encoded)
	require.NoError(t, err)
	require.Equal(t, priv.PublicKey.N, decoded.N)
}

func TestLoadPrivateKeyMissingFile(t *testing.T) {
	_, err := LoadPrivateKey(filepath.Join(t.TempDir(), "missing.priv"))
	require.Error(t, err)
}

func TestDecodePublicKeyPEMRejectsGarbage(t *testing.T) {
	_, err := DecodePublicKeyPEM([]byte("not pem at all"))
	require.Error(t, err)
}
