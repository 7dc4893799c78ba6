// Package wire implements the length-prefixed, authenticated-encrypted
// record framing used on every matchd link (server<->client and
// client<->client). Each record is sent as two back-to-back AES-GCM sealed
// blobs: a fixed-size header carrying the body's length and type, followed
// by the body itself.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/crushmatch/matchd/internal/cryptoutil"
)

// Type identifies the semantic content of a Record's body.
type Type byte

const (
	Normal Type = iota
	Debug
	RemovePeer
	AddPeer
	RequestPublicKey
	InformPublicKey
	InformAddress
	Secret
)

func (t Type) String() string {
	switch t {
	case Normal:
		return "NORMAL"
	case Debug:
		return "DEBUG"
	case RemovePeer:
		return "RemovePeer"
	case AddPeer:
		return "AddPeer"
	case RequestPublicKey:
		return "RequestPublicKey"
	case InformPublicKey:
		return "InformPublicKey"
	case InformAddress:
		return "InformAddress"
	case Secret:
		return "Secret"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// headerPlaintextLen is length_u64_be(8) || type_u8(1).
const headerPlaintextLen = 9

// headerBlobLen is the fixed wire size of a sealed header: iv(12)+tag(16)+ciphertext(9).
const headerBlobLen = cryptoutil.IVSize + cryptoutil.TagSize + headerPlaintextLen

// Record is one decoded, authenticated message on a link.
type Record struct {
	Type    Type
	Content []byte
}

// ErrUnknownType is returned by Recv when the header names a type code
// this implementation does not recognize. Per the framing contract this is
// link-fatal: callers must close the connection, not skip the record.
var ErrUnknownType = errors.New("wire: unknown record type")

// ErrBodyTooLarge is returned by Recv when a header announces a body larger
// than MaxBodyLen. A single misbehaving or compromised peer must not be able
// to force an unbounded allocation on the reading side.
var ErrBodyTooLarge = errors.New("wire: body exceeds maximum length")

// MaxBodyLen bounds the plaintext body length a single record may declare.
const MaxBodyLen = 64 * 1024 * 1024

// Send writes rec to w, sealed under key. It writes the header blob and then
// the body blob, in that order, matching the teacher's two-write pattern of
// length-prefix-then-payload.
func Send(w io.Writer, key []byte, rec Record) error {
	header := make([]byte, headerPlaintextLen)
	binary.BigEndian.PutUint64(header[:8], uint64(len(rec.Content)))
	header[8] = byte(rec.Type)

	headerBlob, err := cryptoutil.AESSeal(header, key)
	if err != nil {
		return fmt.Errorf("wire: seal header: %w", err)
	}
	if _, err := w.Write(headerBlob); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}

	bodyBlob, err := cryptoutil.AESSeal(rec.Content, key)
	if err != nil {
		return fmt.Errorf("wire: seal body: %w", err)
	}
	if _, err := w.Write(bodyBlob); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}
	return nil
}

// Recv reads exactly one Record from r, sealed under key. Any authentication
// failure, short read, or I/O error is returned as a non-nil error; callers
// must treat this as "peer gone or invalid" and close the link.
func Recv(r io.Reader, key []byte) (Record, error) {
	headerBlob := make([]byte, headerBlobLen)
	if _, err := io.ReadFull(r, headerBlob); err != nil {
		return Record{}, fmt.Errorf("wire: read header: %w", err)
	}

	header, err := cryptoutil.AESOpen(headerBlob, key)
	if err != nil {
		return Record{}, fmt.Errorf("wire: open header: %w", err)
	}
	if len(header) != headerPlaintextLen {
		return Record{}, fmt.Errorf("wire: malformed header length %d", len(header))
	}

	length := binary.BigEndian.Uint64(header[:8])
	typ := Type(header[8])
	if typ > Secret {
		return Record{}, ErrUnknownType
	}
	if length > MaxBodyLen {
		return Record{}, ErrBodyTooLarge
	}

	bodyBlob := make([]byte, cryptoutil.IVSize+cryptoutil.TagSize+length)
	if _, err := io.ReadFull(r, bodyBlob); err != nil {
		return Record{}, fmt.Errorf("wire: read body: %w", err)
	}

	content, err := cryptoutil.AESOpen(bodyBlob, key)
	if err != nil {
		return Record{}, fmt.Errorf("wire: open body: %w", err)
	}

	return Record{Type: typ, Content: content}, nil
}
