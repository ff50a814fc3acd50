package api

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/rflorenc/mapsite-admin/internal/console"
)

// SessionCookie carries the console session id.
const SessionCookie = "console_session"

// Factory creates a fresh console session.
type Factory func() (*console.Console, error)

type session struct {
	console  *console.Console
	lastSeen time.Time
}

// SessionStore is an in-memory thread-safe store for console sessions. A
// session not seen for longer than the TTL is gone.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
	factory  Factory
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewSessionStore creates an empty session store.
func NewSessionStore(ttl time.Duration, factory Factory, log logrus.FieldLogger) *SessionStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		factory:  factory,
		now:      time.Now,
		log:      log,
	}
}

// Create starts a new console session and runs its startup refresh.
func (s *SessionStore) Create(ctx context.Context) (*console.Console, error) {
	c, err := s.factory()
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		s.log.WithField("session", c.ID[:8]).WithError(err).Debug("started without API session")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[c.ID] = &session{console: c, lastSeen: s.now()}
	return c, nil
}

// Get returns a live session by ID and marks it as seen, or nil.
func (s *SessionStore) Get(id string) *console.Console {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return nil
	}
	sess.lastSeen = now
	return sess.console
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than the TTL.
func (s *SessionStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Collector exposes the number of live sessions as a gauge.
func (s *SessionStore) Collector() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "mapsite_console",
		Name:      "sessions",
		Help:      "Console sessions currently held in memory.",
	}, func() float64 { return float64(s.Len()) })
}
