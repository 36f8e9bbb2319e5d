package threat

import (
	"sync"
)

// epsilon is the floor below which a decayed score is removed rather than
// stored: scores never go negative and near-zero entries are deleted.
const epsilon = 1e-9

// Store holds the decaying threat scores, keyed by (guild, user). Every
// operation takes the store lock, so increments from interleaved event
// handlers never lose updates and read-and-clear is atomic.
type Store struct {
	mu     sync.Mutex
	guilds map[string]map[string]float64
}

// NewStore returns an empty score store.
func NewStore() *Store {
	return &Store{guilds: make(map[string]map[string]float64)}
}

// Add increments a member's score by weight and returns the new total.
// A weight ≤ 0 is a no-op and returns the current total.
func (s *Store) Add(guildID, userID string, weight float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.guilds[guildID]
	if weight <= 0 {
		return users[userID]
	}
	if users == nil {
		users = make(map[string]float64)
		s.guilds[guildID] = users
	}
	users[userID] += weight
	return users[userID]
}

// ReadAndClear atomically removes and returns a member's score entry. The
// second return value is false when no entry exists, which is how
// concurrent threshold crossings collapse to a single trigger: only the
// caller that actually removed the entry proceeds.
func (s *Store) ReadAndClear(guildID, userID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.guilds[guildID]
	if !ok {
		return 0, false
	}
	score, ok := users[userID]
	if !ok {
		return 0, false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.guilds, guildID)
	}
	return score, true
}

// DecayTick subtracts decay from every entry of a guild in one batch.
// Entries reaching zero or below are deleted.
func (s *Store) DecayTick(guildID string, decay float64) {
	if decay <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.guilds[guildID]
	if !ok {
		return
	}
	for userID, score := range users {
		score -= decay
		if score <= epsilon {
			delete(users, userID)
		} else {
			users[userID] = score
		}
	}
	if len(users) == 0 {
		delete(s.guilds, guildID)
	}
}

// GuildIDs returns the guilds that currently hold at least one score entry.
func (s *Store) GuildIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.guilds))
	for id := range s.guilds {
		out = append(out, id)
	}
	return out
}

// Score returns a member's current score, zero when absent.
func (s *Store) Score(guildID, userID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guilds[guildID][userID]
}
