package telemetry

import (
	"sync"
	"time"

	"github.com/maypok86/otter"
)

// Session is what is known about one client's recent clicks on one route.
type Session struct {
	FirstSeen time.Time
	Clicks    int
}

// SessionTracker counts clicks per (client, route) within a sliding TTL.
type SessionTracker struct {
	mu       sync.Mutex
	sessions otter.Cache[string, Session]
	now      func() time.Time
}

// NewSessionTracker keeps at most capacity sessions, each for ttl after its last click.
func NewSessionTracker(capacity int, ttl time.Duration) (*SessionTracker, error) {
	sessions, err := otter.MustBuilder[string, Session](capacity).
		Cost(func(string, Session) uint32 { return 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &SessionTracker{sessions: sessions, now: time.Now}, nil
}

// Touch records a click and returns the session after it. The first click
// of a session is the unique one.
func (t *SessionTracker) Touch(clientIP, routeID string) Session {
	key := clientIP + "|" + routeID

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions.Get(key)
	if !ok {
		s = Session{FirstSeen: t.now().UTC()}
	}
	s.Clicks++
	t.sessions.Set(key, s)
	return s
}

func (t *SessionTracker) Close() {
	t.sessions.Close()
}
