package meshclient

// EventKind distinguishes the two shapes of client-side peer lifecycle
// event, the client's counterpart of the server's ClientConnected /
// ClientDisconnected events.
type EventKind int

const (
	// PeerJoined fires once a peer link is usable: the session key is
	// established and the remote's public key is known, whether the link
	// was dialed in response to an AddPeer or accepted unsolicited.
	PeerJoined EventKind = iota
	// PeerLeft fires once a peer link is gone, whether because the server
	// announced a RemovePeer or because the socket itself failed.
	PeerLeft
)

// Event is one entry on the client's internal event queue.
type Event struct {
	Kind EventKind
	Peer *PeerSession
}
