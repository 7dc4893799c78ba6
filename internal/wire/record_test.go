package wire

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crushmatch/matchd/internal/cryptoutil"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoutil.SessionKeySize)
	_, err := io.ReadFull(rand.Reader, key)
	require.NoError(t, err)
	return key
}

func TestSendRecvRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
	}{
		{"empty body", Record{Type: Normal, Content: nil}},
		{"debug match", Record{Type: Debug, Content: []byte("MATCH OBTAINED")}},
		{"secret token", Record{Type: Secret, Content: []byte("deadbeef")}},
		{"add peer", Record{Type: AddPeer, Content: []byte("127.0.0.1:4000,PEM...")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := randomKey(t)
			var buf bytes.Buffer

			require.NoError(t, Send(&buf, key, tc.rec))
			got, err := Recv(&buf, key)
			require.NoError(t, err)

			require.Equal(t, tc.rec.Type, got.Type)
			require.Equal(t, tc.rec.Content, got.Content)
		})
	}
}

func TestRecvRejectsTamperedRecord(t *testing.T) {
	key := randomKey(t)
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, key, Record{Type: Normal, Content: []byte("hello")}))

	raw := buf.Bytes()
	for i := range raw {
		tampered := append([]byte{}, raw...)
		tampered[i] ^= 0xFF
		_, err := Recv(bytes.NewReader(tampered), key)
		require.Error(t, err, "flipping byte %d should invalidate the record", i)
	}
}

func TestRecvRejectsWrongKey(t *testing.T) {
	key := randomKey(t)
	wrongKey := randomKey(t)
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, key, Record{Type: Normal, Content: []byte("hello")}))

	_, err := Recv(&buf, wrongKey)
	require.ErrorIs(t, err, cryptoutil.ErrAuthFailed)
}

func TestRecvRejectsUnknownType(t *testing.T) {
	key := randomKey(t)
	// The type byte only becomes readable after a successful decrypt, so
	// the simplest way to exercise the decode-side check is to send a
	// record whose type is already out of range.
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, key, Record{Type: Type(200), Content: []byte("x")}))
	_, err := Recv(&buf, key)
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestRecvShortReadIsError(t *testing.T) {
	key := randomKey(t)
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, key, Record{Type: Normal, Content: []byte("hello world")}))

	truncated := buf.Bytes()[:headerBlobLen-1]
	_, err := Recv(bytes.NewReader(truncated), key)
	require.Error(t, err)
}

func TestSendRecvFuzzLargeBody(t *testing.T) {
	key := randomKey(t)
	body := make([]byte, 1<<20) // 1 MiB
	_, err := io.ReadFull(rand.Reader, body)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Send(&buf, key, Record{Type: Normal, Content: body}))

	got, err := Recv(&buf, key)
	require.NoError(t, err)
	require.Equal(t, Normal, got.Type)
	require.Equal(t, body, got.Content)
}

func TestRecvRejectsOversizedBody(t *testing.T) {
	key := randomKey(t)

	header := make([]byte, headerPlaintextLen)
	binary.BigEndian.PutUint64(header[:8], MaxBodyLen+1)
	header[8] = byte(Normal)

	headerBlob, err := cryptoutil.AESSeal(header, key)
	require.NoError(t, err)

	_, err = Recv(bytes.NewReader(headerBlob), key)
	require.ErrorIs(t, err, ErrBodyTooLarge)
}
