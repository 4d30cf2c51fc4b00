package reasoning

import (
	"context"
	"sync"
)

// StubReasoner replays canned responses. Used by tests of every
// reasoning-backed component.
type StubReasoner struct {
	mu       sync.Mutex
	Response string
	Err      error
	Requests []Request
}

func (s *StubReasoner) Reason(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	return s.Response, s.Err
}

// Calls reports how many requests the stub has served.
func (s *StubReasoner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
