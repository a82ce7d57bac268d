// Package session keeps one wizard per browser session. Sessions live in
// memory only and expire after a period of inactivity.
package session

import (
	"sync"
	"time"

	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session id.
const CookieName = "wizard_session"

// Session is one user's wizard.
type Session struct {
	ID      string
	Wizard  *wizard.Wizard
	Created time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

// Store maps session ids to sessions.
type Store struct {
	opts wizard.Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore returns an empty store whose wizards use opts.
func NewStore(opts wizard.Options) *Store {
	return &Store{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a fresh wizard.
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:       uuid.NewString(),
		Wizard:   wizard.New(st.opts),
		Created:  now,
		lastSeen: now,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	return s
}

// Get returns the session for id and marks it as used.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok {
		return nil, wizard.ErrNoSession
	}
	s.touch(st.now())
	return s, nil
}

// GetOrCreate returns the session for id, or a new one when id is unknown.
// created reports which happened.
func (st *Store) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, err := st.Get(id); err == nil {
			return s, false
		}
	}
	return st.Create(), true
}

// Touch marks the session as used.
func (st *Store) Touch(id string) error {
	_, err := st.Get(id)
	return err
}

// Delete removes the session and stops any processing it owns.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		s.Wizard.Reset()
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Expire removes sessions idle for longer than ttl and returns how many
// were removed.
func (st *Store) Expire(ttl time.Duration) int {
	cutoff := st.now().Add(-ttl)

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.Wizard.Reset()
	}
	return len(expired)
}
