package playsync

import (
	"sync"
	"time"
)

// suppressor is a timed latch. Latch is called before every programmatic
// player mutation; Active gates every outward emission. The latch expires
// by time alone, never by explicit transition, so a lost follow-up
// message can never wedge the engine in the muted state.
type suppressor struct {
	mu     sync.Mutex
	until  time.Time
	window time.Duration
	now    func() time.Time
}

func newSuppressor(window time.Duration, now func() time.Time) *suppressor {
	if now == nil {
		now = time.Now
	}
	return &suppressor{window: window, now: now}
}

func (s *suppressor) Latch() {
	s.mu.Lock()
	s.until = s.now().Add(s.window)
	s.mu.Unlock()
}

func (s *suppressor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.until)
}
