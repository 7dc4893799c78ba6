package rendezvous

import "sync"

// clientSet holds every currently-connected client's Session in join order.
// Join order matters: broadcasts are delivered to clients in the order they
// appear here, per the rendezvous protocol's ordering guarantee.
type clientSet struct {
	mu    sync.Mutex
	order []*Session
}

func newClientSet() *clientSet {
	return &clientSet{}
}

func (c *clientSet) Add(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = append(c.order, s)
}

// Remove drops s from the set, matched by identity. A no-op if s is not
// present (e.g. it was already removed by a concurrent disconnect).
func (c *clientSet) Remove(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.order {
		if existing == s {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current membership in join order, safe to
// range over without holding the set's lock (important since sending to a
// client can block or take a while).
func (c *clientSet) Snapshot() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Session, len(c.order))
	copy(out, c.order)
	return out
}

func (c *clientSet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
