package session

import "sync"

// Store holds the live sessions of this process, keyed by invite token.
// Sessions themselves are single-goroutine; the Store only guards the map so
// connection handlers on different goroutines can claim and release them.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put registers a session under its invite, replacing any previous one.
// Replacement is the reconnect path: the old connection's session is
// abandoned and the new connection starts fresh.
func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.Invite()] = s
}

// Get returns the session for an invite, if one is live.
func (st *Store) Get(invite string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[invite]
	return s, ok
}

// Remove drops the session for an invite.
func (st *Store) Remove(invite string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, invite)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
