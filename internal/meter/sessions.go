package meter

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Options configures the meters handed out by a Store
type Options struct {
	Initial      float64
	IncrementMin float64
	IncrementMax float64
	// NewSource seeds each session's meter; nil means random seeding
	NewSource func() rand.Source
	Now       func() time.Time
}

type session struct {
	meter    *Meter
	lastSeen time.Time
}

// Store keeps one meter per browser session
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	opts     Options
}

// NewStore creates an empty session store
func NewStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{sessions: make(map[string]*session), opts: opts}
}

// NewSessionID returns a fresh session identifier
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id could have come from NewSessionID
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// Get returns the meter for id, creating it at the initial total on first use
func (s *Store) Get(id string) *Meter {
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		var src rand.Source
		if s.opts.NewSource != nil {
			src = s.opts.NewSource()
		}
		sess = &session{meter: New(s.opts.Initial, s.opts.IncrementMin, s.opts.IncrementMax, src)}
		s.sessions[id] = sess
	}
	sess.lastSeen = now
	return sess.meter
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions unused for longer than idle and returns how many went
func (s *Store) Sweep(idle time.Duration) int {
	cutoff := s.opts.Now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// ScheduleSweep registers a once-a-minute idle sweep on c
func (s *Store) ScheduleSweep(c *cron.Cron, idle time.Duration, log *logrus.Logger) (cron.EntryID, error) {
	return c.AddFunc("@every 1m", func() {
		if n := s.Sweep(idle); n > 0 {
			log.WithFields(logrus.Fields{"removed": n, "remaining": s.Len()}).Debug("Swept idle sessions")
		}
	})
}
