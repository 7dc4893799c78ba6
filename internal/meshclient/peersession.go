package meshclient

import (
	"crypto/rsa"
	"net"
	"sync"
	"sync/atomic"

	"github.com/crushmatch/matchd/internal/wire"
)

// PeerSession is a client's handle on one directly-connected peer: the
// socket, its AES session key, the remote's RSA public key, and the
// directory key it is filed under. It is the client-side counterpart of the
// server's Session, with the same split-lock rationale: one goroutine ever
// calls Recv, so Recv needs no lock, while Send (used by the per-peer reader
// to answer RequestPublicKey) is serialized by its own write lock.
type PeerSession struct {
	conn       net.Conn
	sessionKey []byte
	addr       string
	publicKey  *rsa.PublicKey

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newPeerSession(conn net.Conn, sessionKey []byte, addr string, pub *rsa.PublicKey) *PeerSession {
	return &PeerSession{
		conn:       conn,
		sessionKey: sessionKey,
		addr:       addr,
		publicKey:  pub,
	}
}

// Send frames and writes rec. Safe for concurrent use.
func (p *PeerSession) Send(rec wire.Record) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return wire.Send(p.conn, p.sessionKey, rec)
}

// Recv reads the next record. Must only be called from the peer's single
// owning reader goroutine.
func (p *PeerSession) Recv() (wire.Record, error) {
	return wire.Recv(p.conn, p.sessionKey)
}

// Close closes the underlying socket. Safe to call more than once.
func (p *PeerSession) Close() error {
	p.closed.Store(true)
	return p.conn.Close()
}

// Closed reports whether the link has been torn down.
func (p *PeerSession) Closed() bool {
	return p.closed.Load()
}

// Addr is the directory key this peer is filed under: the announced
// listening address for a dialed peer, or the raw socket remote address for
// one that connected to us unsolicited.
func (p *PeerSession) Addr() string {
	return p.addr
}

// SessionKey returns the link's AES session key, the value Token binds
// every secret submitted over this link to.
func (p *PeerSession) SessionKey() []byte {
	return p.sessionKey
}

// PublicKey returns the peer's RSA public key.
func (p *PeerSession) PublicKey() *rsa.PublicKey {
	return p.publicKey
}
