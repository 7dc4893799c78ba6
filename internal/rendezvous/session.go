package rendezvous

import (
	"crypto/rsa"
	"net"
	"sync"
	"sync/atomic"

	"github.com/crushmatch/matchd/internal/wire"
)

// Session is the server's handle on one connected client: the socket, its
// AES session key, and the two late-bound fields (public key, announced
// listen address) the client fills in after the handshake completes. It
// exists exactly as long as the underlying TCP socket is open and the
// session-establishment read has succeeded.
//
// Reads and writes use separate locks rather than one coarse session lock:
// exactly one goroutine (the per-client inbound reader) ever calls Recv, so
// it needs no lock at all, while Send may be called concurrently by that
// same reader (on a Secret match) and by the broadcast sender, so only the
// write path is serialized.
type Session struct {
	conn       net.Conn
	sessionKey []byte
	remoteAddr string

	writeMu sync.Mutex

	mu            sync.Mutex
	publicKey     *rsa.PublicKey
	serverAddress string

	closed         atomic.Bool
	disconnectOnce sync.Once
}

func newSession(conn net.Conn, sessionKey []byte) *Session {
	return &Session{
		conn:       conn,
		sessionKey: sessionKey,
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// Send frames and writes rec. Safe for concurrent use.
func (s *Session) Send(rec wire.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wire.Send(s.conn, s.sessionKey, rec)
}

// Recv reads the next record. Must only be called from the session's single
// owning inbound-reader goroutine.
func (s *Session) Recv() (wire.Record, error) {
	return wire.Recv(s.conn, s.sessionKey)
}

// Close closes the underlying socket. Safe to call more than once.
func (s *Session) Close() error {
	s.closed.Store(true)
	return s.conn.Close()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// RemoteAddr is the client's address on the server's accepting socket
// ("ip:port"), used in log lines and as the source of RemoteIP. The client
// collection identifies sessions by pointer, not by this address.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// RemoteIP returns just the IP portion of RemoteAddr, which is what gets
// broadcast in a RemovePeer record.
func (s *Session) RemoteIP() string {
	host, _, err := net.SplitHostPort(s.remoteAddr)
	if err != nil {
		return s.remoteAddr
	}
	return host
}

// SetPublicKey records the client's RSA public key, learned from an
// InformPublicKey record.
func (s *Session) SetPublicKey(pub *rsa.PublicKey) {
	s.mu.Lock()
	s.publicKey = pub
	s.mu.Unlock()
}

// PublicKey returns the client's public key, or nil if not yet known.
func (s *Session) PublicKey() *rsa.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicKey
}

// SetServerAddress records the address the client announced it is itself
// listening on, learned from an InformAddress record.
func (s *Session) SetServerAddress(addr string) {
	s.mu.Lock()
	s.serverAddress = addr
	s.mu.Unlock()
}

// ServerAddress returns the client's announced listen address, or "" if not
// yet known.
func (s *Session) ServerAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverAddress
}

// Ready reports whether both late-bound fields have been populated, i.e.
// whether this session is eligible to be announced to other clients.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicKey != nil && s.serverAddress != ""
}
