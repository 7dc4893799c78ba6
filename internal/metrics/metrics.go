// Package metrics tracks lightweight, in-process counters for diagnostics.
// It plays the same role the teacher's StreamCounter (session/session.go)
// plays for a single stream: an io.Writer-shaped running total, generalized
// here to the handful of counters the rendezvous server and client core
// both want to report.
package metrics

import "sync/atomic"

// Counters holds the running totals one matchd process (server or client)
// accumulates over its lifetime.
type Counters struct {
	connected     atomic.Int64
	matchesFound  atomic.Int64
	recordsFramed atomic.Int64
	bytesSent     atomic.Int64
}

// New returns a zeroed Counters.
func New() *Counters {
	return &Counters{}
}

// ClientConnected records one more live link.
func (c *Counters) ClientConnected() { c.connected.Add(1) }

// ClientDisconnected records one fewer live link.
func (c *Counters) ClientDisconnected() { c.connected.Add(-1) }

// MatchFound records one mutual match delivered.
func (c *Counters) MatchFound() { c.matchesFound.Add(1) }

// RecordSent records one framed record written, and its wire size, so the
// two numbers can be sanity-checked against each other in logs.
func (c *Counters) RecordSent(wireBytes int) {
	c.recordsFramed.Add(1)
	c.bytesSent.Add(int64(wireBytes))
}

// Snapshot is a point-in-time, read-only copy of the counters.
type Snapshot struct {
	Connected     int64
	MatchesFound  int64
	RecordsFramed int64
	BytesSent     int64
}

// Snapshot reads the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Connected:     c.connected.Load(),
		MatchesFound:  c.matchesFound.Load(),
		RecordsFramed: c.recordsFramed.Load(),
		BytesSent:     c.bytesSent.Load(),
	}
}
