package session

import "time"

// Table holds the currently open sessions, one per client. It is driven by a
// single pass over the log and is not safe for concurrent use.
type Table struct {
	sessions map[string]*Session
}

func NewTable() *Table {
	return &Table{
		sessions: make(map[string]*Session),
	}
}

// Get returns a copy of the open session for clientID.
func (t *Table) Get(clientID string) (*Session, bool) {
	s, ok := t.sessions[clientID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Len reports the number of open sessions.
func (t *Table) Len() int {
	return len(t.sessions)
}

// Expire removes and returns every session whose client has been silent for
// more than threshold whole seconds as of now. A gap of exactly threshold
// seconds keeps the session open. The result is in no particular order.
func (t *Table) Expire(now time.Time, threshold int) []*Session {
	var stale []string
	for id, s := range t.sessions {
		if wholeSeconds(now.Sub(s.LastSeen)) > int64(threshold) {
			stale = append(stale, id)
		}
	}

	closed := make([]*Session, 0, len(stale))
	for _, id := range stale {
		closed = append(closed, t.sessions[id])
		delete(t.sessions, id)
	}
	return closed
}

// Fold records a request by clientID at ts. When the client has no open
// session a new one is created with the given rank and Fold reports true;
// otherwise the open session is extended and rank is ignored.
func (t *Table) Fold(clientID string, ts time.Time, rank int) bool {
	if s, ok := t.sessions[clientID]; ok {
		s.touch(ts)
		return false
	}
	t.sessions[clientID] = &Session{
		ClientID:     clientID,
		FirstSeen:    ts,
		LastSeen:     ts,
		RequestCount: 1,
		Duration:     1,
		Rank:         rank,
	}
	return true
}

// Drain removes and returns all open sessions.
func (t *Table) Drain() []*Session {
	all := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		all = append(all, s)
	}
	t.sessions = make(map[string]*Session)
	return all
}

// Open returns copies of the open sessions ordered by rank.
func (t *Table) Open() []*Session {
	result := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		result = append(result, s.Clone())
	}
	SortByRank(result)
	return result
}
