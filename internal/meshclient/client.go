// Package meshclient implements the client half of matchd: it dials the
// rendezvous server, publishes its own listening address and public key,
// dials peers the server announces and accepts peers that dial it, and
// submits the secret tokens that let the server detect a mutual match
// without ever learning either party's name.
package meshclient

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/crushmatch/matchd/internal/cryptoutil"
	"github.com/crushmatch/matchd/internal/handshake"
	"github.com/crushmatch/matchd/internal/keystore"
	"github.com/crushmatch/matchd/internal/metrics"
	"github.com/crushmatch/matchd/internal/wire"
)

// Client is one running matchd client process: the server link, the peer
// listener, the known-peer directory, and the two names this user entered.
type Client struct {
	serverConn net.Conn
	serverKey  []byte
	serverMu   sync.Mutex

	priv       *rsa.PrivateKey
	ownName    string
	crushName  string
	listenAddr string
	ln         net.Listener

	peers   *PeerDirectory
	logger  *log.Logger
	metrics *metrics.Counters

	events chan Event

	matched     chan struct{}
	matchedOnce sync.Once

	closing atomic.Bool
}

// Dial connects to the rendezvous server at serverAddr, performing the
// initiator side of the session handshake under serverPub. ln is the
// client's own peer listener, already bound; its address is what gets
// published to the server as this client's reachable address. ownName and
// crushName should already be canonicalised by the caller (see the prompt
// package).
func Dial(ctx context.Context, serverAddr string, serverPub *rsa.PublicKey, priv *rsa.PrivateKey, ln net.Listener, ownName, crushName string, logger *log.Logger, metricsCounters *metrics.Counters) (*Client, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("meshclient: dial server %s: %w", serverAddr, err)
	}

	key, err := handshake.Initiate(conn, serverPub)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("meshclient: handshake with server: %w", err)
	}

	c := &Client{
		serverConn: conn,
		serverKey:  key,
		priv:       priv,
		ownName:    ownName,
		crushName:  crushName,
		listenAddr: ln.Addr().String(),
		ln:         ln,
		peers:      newPeerDirectory(),
		logger:     logger,
		metrics:    metricsCounters,
		events:     make(chan Event, 64),
		matched:    make(chan struct{}),
	}
	return c, nil
}

// Run publishes this client's address and public key, then services the
// server link and peer listener until ctx is canceled. It blocks.
func (c *Client) Run(ctx context.Context) error {
	if err := c.publishSelf(); err != nil {
		return err
	}

	go c.acceptPeerLoop(ctx)
	go c.serverReader(ctx)
	go c.dispatchEvents(ctx)

	<-ctx.Done()
	c.closing.Store(true)
	c.serverConn.Close()
	c.ln.Close()
	return ctx.Err()
}

// Matched returns a channel that is closed the moment the server reports a
// mutual match. Callers select on it alongside ctx.Done().
func (c *Client) Matched() <-chan struct{} {
	return c.matched
}

// PeerCount reports the number of currently-known peers. Exposed for tests
// and diagnostics.
func (c *Client) PeerCount() int {
	return c.peers.Len()
}

func (c *Client) publishSelf() error {
	if err := c.sendServer(wire.InformAddress, []byte(c.listenAddr)); err != nil {
		return fmt.Errorf("meshclient: publish address: %w", err)
	}
	if err := c.sendServer(wire.InformPublicKey, keystore.EncodePublicKeyPEM(&c.priv.PublicKey)); err != nil {
		return fmt.Errorf("meshclient: publish public key: %w", err)
	}
	return nil
}

func (c *Client) sendServer(typ wire.Type, content []byte) error {
	c.serverMu.Lock()
	defer c.serverMu.Unlock()
	return wire.Send(c.serverConn, c.serverKey, wire.Record{Type: typ, Content: content})
}

// serverReader owns Recv on the server link exclusively and dispatches by
// record type until the link fails.
func (c *Client) serverReader(ctx context.Context) {
	for {
		rec, err := wire.Recv(c.serverConn, c.serverKey)
		if err != nil {
			if !c.closing.Load() {
				c.logger.Printf("server link closed: %v", err)
			}
			return
		}

		switch rec.Type {
		case wire.AddPeer:
			c.handleAddPeer(ctx, rec.Content)
		case wire.RemovePeer:
			c.handleRemovePeer(rec.Content)
		case wire.Debug:
			if string(rec.Content) == "MATCH OBTAINED" {
				c.metrics.MatchFound()
				c.logger.Printf("match obtained")
				c.matchedOnce.Do(func() { close(c.matched) })
			}
		default:
			// NORMAL, RequestPublicKey, InformPublicKey, InformAddress,
			// Secret are peer-link or server-inbound-only types; nothing
			// on the server link carries them.
		}
	}
}

func (c *Client) handleAddPeer(ctx context.Context, body []byte) {
	addr, pemBytes, err := parseAddPeerBody(body)
	if err != nil {
		c.logger.Printf("malformed AddPeer: %v", err)
		return
	}
	if _, known := c.peers.Get(addr); known {
		return
	}

	pub, err := keystore.DecodePublicKeyPEM(pemBytes)
	if err != nil {
		c.logger.Printf("AddPeer for %s carried an unparsable public key: %v", addr, err)
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		c.logger.Printf("dial peer %s: %v", addr, err)
		return
	}

	sessionKey, err := handshake.Initiate(conn, pub)
	if err != nil {
		c.logger.Printf("handshake with peer %s: %v", addr, err)
		conn.Close()
		return
	}

	p := newPeerSession(conn, sessionKey, addr, pub)
	c.peers.Add(p)
	c.metrics.ClientConnected()
	c.logger.Printf("peer joined %s session=%s", addr, cryptoutil.Fingerprint(sessionKey))

	go c.peerReader(p)
	c.events <- Event{Kind: PeerJoined, Peer: p}
}

func (c *Client) handleRemovePeer(body []byte) {
	if !utf8.Valid(body) {
		c.logger.Printf("malformed RemovePeer body")
		return
	}
	for _, p := range c.peers.RemoveByHost(string(body)) {
		p.Close()
		c.metrics.ClientDisconnected()
		c.logger.Printf("peer left %s", p.Addr())
		c.events <- Event{Kind: PeerLeft, Peer: p}
	}
}

// acceptPeerLoop accepts inbound connections from peers that learned our
// address via AddPeer and dialed us first.
func (c *Client) acceptPeerLoop(ctx context.Context) {
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			if c.closing.Load() || ctx.Err() != nil {
				return
			}
			c.logger.Printf("peer accept error: %v", err)
			continue
		}
		go c.handleInboundPeer(conn)
	}
}

// handleInboundPeer performs the responder side of the link handshake, then
// asks the new peer for its public key since an unsolicited connection
// carries no AddPeer payload to learn it from.
func (c *Client) handleInboundPeer(conn net.Conn) {
	sessionKey, err := handshake.Respond(conn, c.priv)
	if err != nil {
		c.logger.Printf("handshake with inbound peer %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	if err := wire.Send(conn, sessionKey, wire.Record{Type: wire.RequestPublicKey}); err != nil {
		c.logger.Printf("request public key from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	rec, err := wire.Recv(conn, sessionKey)
	if err != nil || rec.Type != wire.Normal {
		c.logger.Printf("inbound peer %s did not answer RequestPublicKey", conn.RemoteAddr())
		conn.Close()
		return
	}

	pub, err := keystore.DecodePublicKeyPEM(rec.Content)
	if err != nil {
		c.logger.Printf("inbound peer %s sent an unparsable public key: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	addr := conn.RemoteAddr().String()
	p := newPeerSession(conn, sessionKey, addr, pub)
	c.peers.Add(p)
	c.metrics.ClientConnected()
	c.logger.Printf("peer joined (inbound) %s session=%s", addr, cryptoutil.Fingerprint(sessionKey))

	go c.peerReader(p)
	c.events <- Event{Kind: PeerJoined, Peer: p}
}

// peerReader answers an accepting peer's RequestPublicKey (the symmetric
// case of handleInboundPeer, for when we were the one who dialed) and
// otherwise just watches the link for failure.
func (c *Client) peerReader(p *PeerSession) {
	defer func() {
		addr := p.Addr()
		if _, ok := c.peers.Remove(addr); ok {
			p.Close()
			c.metrics.ClientDisconnected()
			c.events <- Event{Kind: PeerLeft, Peer: p}
		}
	}()

	for {
		rec, err := p.Recv()
		if err != nil {
			return
		}

		switch rec.Type {
		case wire.RequestPublicKey:
			reply := wire.Record{Type: wire.Normal, Content: keystore.EncodePublicKeyPEM(&c.priv.PublicKey)}
			if err := p.Send(reply); err != nil {
				return
			}
		default:
			// NORMAL chat payloads and anything else are outside this
			// core's concern; a full chat UI would dispatch them here.
		}
	}
}

// dispatchEvents computes and submits this link's two secret tokens as soon
// as it becomes usable. Both orderings are sent because either this client
// or the peer may be whichever of "u" and "c" matches the other's "c" and
// "u": sending both means the match succeeds regardless of which side
// entered which name first.
func (c *Client) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.events:
			if e.Kind != PeerJoined {
				continue
			}
			tokenUC := Token(c.ownName+c.crushName, e.Peer.SessionKey())
			tokenCU := Token(c.crushName+c.ownName, e.Peer.SessionKey())

			if err := c.sendServer(wire.Secret, tokenUC); err != nil {
				c.logger.Printf("submit secret token: %v", err)
				continue
			}
			if err := c.sendServer(wire.Secret, tokenCU); err != nil {
				c.logger.Printf("submit secret token: %v", err)
			}
		}
	}
}

var errMalformedAddPeerBody = errors.New("meshclient: malformed AddPeer body")

func parseAddPeerBody(body []byte) (addr string, pubPEM []byte, err error) {
	for i, b := range body {
		if b == ',' {
			return string(body[:i]), body[i+1:], nil
		}
	}
	return "", nil, errMalformedAddPeerBody
}
