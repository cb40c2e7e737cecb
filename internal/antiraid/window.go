package antiraid

import (
	"sync"
	"time"
)

// Entry is one observed message signal inside a member's activity window.
type Entry struct {
	At          time.Time
	ChannelID   string
	Fingerprint string
	MessageID   string
}

type memberKey struct {
	guildID string
	userID  string
}

// windowStore holds the per-(guild, member) activity windows. Windows are
// created lazily on first signal and removed entirely on clear; entries age
// out from the front on every append.
type windowStore struct {
	mu      sync.Mutex
	cap     int
	windows map[memberKey][]Entry
}

func newWindowStore(cap int) *windowStore {
	return &windowStore{cap: cap, windows: make(map[memberKey][]Entry)}
}

// append pushes the entry, evicts from the front past the hard cap, prunes
// aged-out entries and returns a snapshot of the remaining window.
func (s *windowStore) append(guildID, userID string, entry Entry, now time.Time, maxAge time.Duration) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey{guildID: guildID, userID: userID}
	entries := append(s.windows[key], entry)
	if len(entries) > s.cap {
		entries = entries[len(entries)-s.cap:]
	}
	entries = pruneFront(entries, now, maxAge)
	s.windows[key] = entries

	snapshot := make([]Entry, len(entries))
	copy(snapshot, entries)
	return snapshot
}

func (s *windowStore) clear(guildID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, memberKey{guildID: guildID, userID: userID})
}

// sweep drops windows whose entries have all aged out, reclaiming memory for
// members who stopped messaging mid-window. Returns the number of windows
// removed.
func (s *windowStore) sweep(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entries := range s.windows {
		entries = pruneFront(entries, now, maxAge)
		if len(entries) == 0 {
			delete(s.windows, key)
			removed++
			continue
		}
		s.windows[key] = entries
	}
	return removed
}

func (s *windowStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// pruneFront trims expired entries. Entries are arrival-ordered so this is a
// prefix cut.
func pruneFront(entries []Entry, now time.Time, maxAge time.Duration) []Entry {
	idx := 0
	for _, entry := range entries {
		if now.Sub(entry.At) <= maxAge {
			break
		}
		idx++
	}
	return entries[idx:]
}
