package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/farm-assistant/internal/pest"
)

var (
	// ErrNotFound is returned when no bulletin matches the request.
	ErrNotFound = errors.New("no pest bulletins stored")
)

// MemoryStore is a concurrency-safe in-memory history of pest bulletins,
// ordered by fetch time.
type MemoryStore struct {
	mu sync.RWMutex

	bulletins []pest.Bulletin

	// retention configuration
	maxHistory int           // max number of bulletins kept
	maxAge     time.Duration // optional max age of bulletins
	clock      clockwork.Clock
}

var _ pest.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// SaveBulletin appends a bulletin and enforces retention.
func (s *MemoryStore) SaveBulletin(b pest.Bulletin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bulletins = append(s.bulletins, b)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.bulletins) > s.maxHistory {
		over := len(s.bulletins) - s.maxHistory
		s.bulletins = s.bulletins[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.bulletins); i++ {
			if !s.bulletins[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		s.bulletins = s.bulletins[i:]
	}
}

// LatestBulletin returns the most recently fetched bulletin.
func (s *MemoryStore) LatestBulletin() (pest.Bulletin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.bulletins) == 0 {
		return pest.Bulletin{}, ErrNotFound
	}
	return s.bulletins[len(s.bulletins)-1], nil
}

// BulletinRange returns all bulletins fetched between from and to (inclusive).
func (s *MemoryStore) BulletinRange(from, to time.Time) ([]pest.Bulletin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []pest.Bulletin
	for _, b := range s.bulletins {
		if !b.FetchedAt.Before(from) && !b.FetchedAt.After(to) {
			result = append(result, b)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Len reports how many bulletins are retained.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bulletins)
}
