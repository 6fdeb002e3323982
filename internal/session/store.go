package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"studio/internal/domain"
)

// Store keeps sessions in memory with a sliding TTL. Nothing is persisted;
// an evicted session is simply gone, matching the session-scoped data model.
type Store struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Store{
		cache: gocache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// Create allocates a fresh session in the Upload stage.
func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString())
	s.cache.Set(sess.ID(), sess, gocache.DefaultExpiration)
	return sess
}

// Get returns the session and slides its expiry.
func (s *Store) Get(id string) (*Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	sess, ok := v.(*Session)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	s.cache.Set(id, sess, gocache.DefaultExpiration)
	return sess, nil
}

// Count reports the number of live sessions, expired entries included until
// the next cleanup pass.
func (s *Store) Count() int {
	return s.cache.ItemCount()
}
