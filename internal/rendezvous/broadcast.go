package rendezvous

import (
	"context"

	"github.com/crushmatch/matchd/internal/cryptoutil"
	"github.com/crushmatch/matchd/internal/wire"
)

// runBroadcastSender drains the broadcast channel one record at a time,
// attempting delivery to every currently-connected client before moving on
// to the next queued record. A client the send fails for is disconnected but
// does not block delivery to the rest.
func (srv *Server) runBroadcastSender(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-srv.broadcastCh:
			srv.sendToAll(rec)
		}
	}
}

func (srv *Server) sendToAll(rec wire.Record) {
	var selfAddr string
	if rec.Type == wire.AddPeer {
		addr, _, err := parseAddPeerBody(rec.Content)
		if err != nil {
			srv.logger.Printf("broadcast: dropping malformed AddPeer body: %v", err)
			return
		}
		selfAddr = addr
	}

	for _, c := range srv.clients.Snapshot() {
		if rec.Type == wire.AddPeer {
			if c.ServerAddress() == "" {
				continue // don't announce to a client we can't reach back yet
			}
			if c.ServerAddress() == selfAddr {
				continue // never announce a peer to itself
			}
		}

		if err := c.Send(rec); err != nil {
			srv.logger.Printf("broadcast to %s failed: %v", c.RemoteAddr(), err)
			srv.disconnect(c)
			continue
		}
		// On the wire a record is a sealed 9-byte header plus the sealed
		// body, each carrying its own IV and tag.
		srv.metrics.RecordSent(2*(cryptoutil.IVSize+cryptoutil.TagSize) + 9 + len(rec.Content))
	}
}
