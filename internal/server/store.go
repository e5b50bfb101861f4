package server

import (
	"fmt"
	"sync"
	"time"
)

// Store holds live sessions keyed by room code. Update is the only mutation
// primitive: the mutator runs under the store lock and must leave the session
// untouched when it returns an error, so a rejected conditional write never
// partially applies. Every session handed back to a caller is a deep copy;
// only mutators ever touch the live document.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

func (s *Store) CreateSession(cfg GameConfig) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := newRoomCode()
	for _, taken := s.sessions[code]; taken; _, taken = s.sessions[code] {
		code = newRoomCode()
	}
	now := timeNowUTC()
	sess := &Session{
		Code:       code,
		Config:     cfg,
		Status:     statusWaiting,
		CreatedAt:  now,
		LastActive: now,
	}
	s.sessions[code] = sess
	return sess.clone()
}

func (s *Store) Get(code string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[normalizeRoomCode(code)]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

func (s *Store) Update(code string, update func(sess *Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[normalizeRoomCode(code)]
	if !ok {
		return nil, fmt.Errorf("%w: game %s", ErrNotFound, code)
	}
	if err := update(sess); err != nil {
		return nil, err
	}
	sess.LastActive = timeNowUTC()
	return sess.clone(), nil
}

func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, normalizeRoomCode(code))
}

// DeleteIdle drops sessions with no reads or writes for longer than maxAge
// and returns the removed room codes.
func (s *Store) DeleteIdle(maxAge time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := timeNowUTC().Add(-maxAge)
	removed := make([]string, 0)
	for code, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			delete(s.sessions, code)
			removed = append(removed, code)
		}
	}
	return removed
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
