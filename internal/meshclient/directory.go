package meshclient

import (
	"net"
	"sync"
)

// PeerDirectory is the set of currently-known peers, each identified by its
// directory key (see PeerSession.Addr). It is updated by server-originated
// AddPeer/RemovePeer records and by locally accepted inbound connections.
type PeerDirectory struct {
	mu     sync.Mutex
	byAddr map[string]*PeerSession
}

func newPeerDirectory() *PeerDirectory {
	return &PeerDirectory{byAddr: make(map[string]*PeerSession)}
}

// Add files p under its own directory key.
func (d *PeerDirectory) Add(p *PeerSession) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byAddr[p.Addr()] = p
}

// Remove drops the peer filed under addr, if any.
func (d *PeerDirectory) Remove(addr string) (*PeerSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.byAddr[addr]
	if ok {
		delete(d.byAddr, addr)
	}
	return p, ok
}

// RemoveByHost drops every peer whose directory key's host portion matches
// host, returning them. A RemovePeer announcement carries only the
// disconnecting socket's bare IP, not the "host:port" listening address the
// peer was originally filed under, so removal has to match on host alone.
func (d *PeerDirectory) RemoveByHost(host string) []*PeerSession {
	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []*PeerSession
	for addr, p := range d.byAddr {
		h, _, err := net.SplitHostPort(addr)
		if err != nil {
			h = addr
		}
		if h == host {
			removed = append(removed, p)
			delete(d.byAddr, addr)
		}
	}
	return removed
}

// Get looks up the peer filed under addr.
func (d *PeerDirectory) Get(addr string) (*PeerSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.byAddr[addr]
	return p, ok
}

// Snapshot returns a copy of the current membership, safe to range over
// without holding the directory's lock.
func (d *PeerDirectory) Snapshot() []*PeerSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*PeerSession, 0, len(d.byAddr))
	for _, p := range d.byAddr {
		out = append(out, p)
	}
	return out
}

// Len reports the number of currently-known peers.
func (d *PeerDirectory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byAddr)
}
