package rendezvous

import "sync"

// MatchTable maps an opaque secret token to the Session that first submitted
// it. At most one Session is ever recorded per token: the second submitter
// triggers a match and removes the entry, so a third submission of the same
// token starts a fresh pairing rather than matching a stale one.
//
// Submit is the table's one operation, and it must perform "look up and, if
// present, remove and return" and "insert" atomically with respect to each
// other — otherwise two submissions racing on the same token could both
// observe an empty slot and both insert, silently losing a match. A single
// mutex around the map is sufficient at this scale.
type MatchTable struct {
	mu    sync.Mutex
	table map[string]*Session
}

// NewMatchTable returns an empty table.
func NewMatchTable() *MatchTable {
	return &MatchTable{table: make(map[string]*Session)}
}

// Submit records that session submitted token. If another session already
// submitted the same token, that session is returned with matched=true and
// the entry is removed. Otherwise the submission is recorded and matched is
// false.
func (m *MatchTable) Submit(token string, session *Session) (other *Session, matched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.table[token]; ok {
		delete(m.table, token)
		return existing, true
	}
	m.table[token] = session
	return nil, false
}

// Len reports the number of outstanding, unmatched tokens. Exposed for
// tests; the server's protocol logic never needs it.
func (m *MatchTable) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}
