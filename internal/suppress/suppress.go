// Package suppress tracks message ids deleted by the bot itself so the
// deletion logger does not re-report them as moderator activity.
package suppress

import "sync"

type Set struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

func (s *Set) Add(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[messageID] = struct{}{}
}

// Discard reports whether the id was present and removes it. Each suppressed
// id is consumed by exactly one delete event.
func (s *Set) Discard(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[messageID]; ok {
		delete(s.ids, messageID)
		return true
	}
	return false
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
