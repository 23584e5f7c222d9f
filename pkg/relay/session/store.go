package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the session record mapping. Every operation is synchronous
// and either succeeds or fails with a *StorageError.
type Store interface {
	// Get returns the record for id, or nil when absent. Expiry is the
	// manager's concern, not the store's: an expired record is still
	// returned.
	Get(id string) (*Session, error)

	// Set inserts or replaces the record under its ID.
	Set(s *Session) error

	// Delete removes the record. Deleting an absent id is not an error.
	Delete(id string) error

	// List returns every stored record, expired ones included.
	List() ([]*Session, error)

	// CleanupExpired deletes every record whose expiry is in the past.
	CleanupExpired(now time.Time) error
}

// CacheStore is the default in-memory Store, backed by a go-cache map.
// Records are stored without a backend TTL: the manager decides what
// "expired" means, so an expired record must stay observable until the
// first access deletes it.
type CacheStore struct {
	c *gocache.Cache
}

// NewCacheStore creates an empty in-memory store.
func NewCacheStore() *CacheStore {
	return &CacheStore{c: gocache.New(gocache.NoExpiration, 0)}
}

func (s *CacheStore) Get(id string) (*Session, error) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, nil
	}
	return v.(*Session), nil
}

func (s *CacheStore) Set(sess *Session) error {
	s.c.Set(sess.ID, sess, gocache.NoExpiration)
	return nil
}

func (s *CacheStore) Delete(id string) error {
	s.c.Delete(id)
	return nil
}

func (s *CacheStore) List() ([]*Session, error) {
	items := s.c.Items()
	out := make([]*Session, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*Session))
	}
	return out, nil
}

func (s *CacheStore) CleanupExpired(now time.Time) error {
	for id, item := range s.c.Items() {
		if item.Object.(*Session).Expired(now) {
			s.c.Delete(id)
		}
	}
	return nil
}
