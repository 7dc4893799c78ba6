// Package rendezvous implements the server half of matchd: the accept loop,
// per-client event queue, outbound broadcast queue, peer-directory
// announcements, and the oblivious match table described by the mutual-match
// discovery protocol.
package rendezvous

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/crushmatch/matchd/internal/cryptoutil"
	"github.com/crushmatch/matchd/internal/handshake"
	"github.com/crushmatch/matchd/internal/keystore"
	"github.com/crushmatch/matchd/internal/metrics"
	"github.com/crushmatch/matchd/internal/wire"
)

// announcePollInterval is how often the event dispatcher rechecks whether a
// newly-connected session has become ready to announce. It plays the role
// the teacher's 200-500ms socket read timeouts play for session_manager's
// monitor loops: the one place this implementation trades a little latency
// for a simple polling loop instead of a condition variable wired through
// every field setter.
const announcePollInterval = 200 * time.Millisecond

type eventKind int

const (
	clientConnected eventKind = iota
	clientDisconnected
)

type serverEvent struct {
	kind    eventKind
	session *Session
}

// Server is the rendezvous server: it accepts client connections, tracks
// them, and matches the secret tokens they submit.
type Server struct {
	listenAddr string
	priv       *rsa.PrivateKey
	logger     *log.Logger
	metrics    *metrics.Counters

	clients *clientSet
	match   *MatchTable

	events      chan serverEvent
	broadcastCh chan wire.Record

	closing atomic.Bool
	ready   chan struct{}
	addr    net.Addr
}

// NewServer constructs a Server bound to listenAddr (not yet listening; call
// Run to start). priv is the server's long-term RSA private key, used to
// respond to every handshake. logger and metricsCounters may not be nil.
func NewServer(listenAddr string, priv *rsa.PrivateKey, logger *log.Logger, metricsCounters *metrics.Counters) *Server {
	return &Server{
		listenAddr:  listenAddr,
		priv:        priv,
		logger:      logger,
		metrics:     metricsCounters,
		clients:     newClientSet(),
		match:       NewMatchTable(),
		events:      make(chan serverEvent, 256),
		broadcastCh: make(chan wire.Record, 256),
		ready:       make(chan struct{}),
	}
}

// Run binds the listener and runs the server until ctx is canceled or the
// listener fails. It blocks.
func (srv *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.listenAddr)
	if err != nil {
		return fmt.Errorf("rendezvous: listen on %s: %w", srv.listenAddr, err)
	}
	srv.addr = ln.Addr()
	close(srv.ready)
	srv.logger.Printf("rendezvous server listening on %s", srv.listenAddr)

	go srv.dispatchEvents(ctx)
	go srv.runBroadcastSender(ctx)
	go srv.acceptLoop(ctx, ln)

	<-ctx.Done()
	srv.closing.Store(true)
	return ln.Close()
}

// ClientCount reports the number of currently-connected clients. Exposed for
// tests and diagnostics.
func (srv *Server) ClientCount() int {
	return srv.clients.Len()
}

// Addr blocks until the server is listening and returns its bound address.
// Used by tests that bind to an OS-chosen port (":0").
func (srv *Server) Addr() net.Addr {
	<-srv.ready
	return srv.addr
}

func (srv *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if srv.closing.Load() || ctx.Err() != nil {
				return
			}
			srv.logger.Printf("accept error: %v", err)
			continue
		}
		go srv.handleAccept(conn)
	}
}

// handleAccept performs the responder side of the session handshake
// synchronously, then registers the new client and spawns its dedicated
// inbound reader.
func (srv *Server) handleAccept(conn net.Conn) {
	sessionKey, err := handshake.Respond(conn, srv.priv)
	if err != nil {
		srv.logger.Printf("handshake with %s failed: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	s := newSession(conn, sessionKey)
	srv.clients.Add(s)
	srv.metrics.ClientConnected()
	srv.logger.Printf("client connected %s session=%s", s.RemoteAddr(), cryptoutil.Fingerprint(sessionKey))

	srv.events <- serverEvent{kind: clientConnected, session: s}
	go srv.inboundReader(s)
}

// inboundReader is the per-client receive loop: it owns Recv on this
// session exclusively and dispatches by record type until the link fails.
func (srv *Server) inboundReader(s *Session) {
	defer srv.disconnect(s)

	for {
		rec, err := s.Recv()
		if err != nil {
			srv.logger.Printf("client %s: link closed: %v", s.RemoteAddr(), err)
			return
		}

		switch rec.Type {
		case wire.InformPublicKey:
			pub, err := keystore.DecodePublicKeyPEM(rec.Content)
			if err != nil {
				srv.logger.Printf("client %s: malformed public key: %v", s.RemoteAddr(), err)
				return
			}
			s.SetPublicKey(pub)

		case wire.InformAddress:
			if !utf8.Valid(rec.Content) {
				srv.logger.Printf("client %s: malformed address payload", s.RemoteAddr())
				return
			}
			s.SetServerAddress(string(rec.Content))

		case wire.Secret:
			srv.handleSecret(s, rec.Content)

		default:
			// DEBUG, AddPeer and RemovePeer are server-originated, and
			// NORMAL and RequestPublicKey are peer-link-only types; the
			// server has nothing to do with them arriving from a client.
		}
	}
}

// handleSecret consults the match table for token and, on a match, notifies
// both submitters.
func (srv *Server) handleSecret(s *Session, token []byte) {
	other, matched := srv.match.Submit(string(token), s)
	if !matched {
		return
	}

	srv.metrics.MatchFound()
	srv.logger.Printf("match obtained between %s and %s", s.RemoteAddr(), other.RemoteAddr())

	msg := wire.Record{Type: wire.Debug, Content: []byte("MATCH OBTAINED")}
	if err := other.Send(msg); err != nil {
		srv.disconnect(other)
	}
	if err := s.Send(msg); err != nil {
		srv.disconnect(s)
	}
}

// disconnect tears down s exactly once, regardless of which caller (the
// inbound reader noticing a read error, or the broadcast sender noticing a
// write error) observes the failure first.
func (srv *Server) disconnect(s *Session) {
	s.disconnectOnce.Do(func() {
		s.Close()
		srv.events <- serverEvent{kind: clientDisconnected, session: s}
	})
}

func (srv *Server) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-srv.events:
			switch e.kind {
			case clientConnected:
				srv.awaitAndAnnounce(ctx, e.session)
			case clientDisconnected:
				srv.clients.Remove(e.session)
				srv.metrics.ClientDisconnected()
				srv.logger.Printf("client disconnected %s", e.session.RemoteAddr())
				srv.broadcastCh <- wire.Record{Type: wire.RemovePeer, Content: []byte(e.session.RemoteIP())}
			}
		}
	}
}

// awaitAndAnnounce blocks the event dispatcher until s has both late-bound
// fields populated and the broadcast queue has drained, then enqueues the
// AddPeer announcement. It gives up silently if s disconnects first, which
// is what keeps a client that dies before announcing from ever being
// announced (the disconnect path still always enqueues its RemovePeer).
func (srv *Server) awaitAndAnnounce(ctx context.Context, s *Session) {
	for {
		if s.Closed() {
			return
		}
		if s.Ready() && len(srv.broadcastCh) == 0 {
			body := fmt.Sprintf("%s,%s", s.ServerAddress(), keystore.EncodePublicKeyPEM(s.PublicKey()))
			select {
			case srv.broadcastCh <- wire.Record{Type: wire.AddPeer, Content: []byte(body)}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(announcePollInterval):
		}
	}
}

var errMalformedAddPeerBody = errors.New("rendezvous: malformed AddPeer body")

func parseAddPeerBody(body []byte) (addr string, pubPEM []byte, err error) {
	for i, b := range body {
		if b == ',' {
			return string(body[:i]), body[i+1:], nil
		}
	}
	return "", nil, errMalformedAddPeerBody
}
