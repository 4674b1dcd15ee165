package state

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory. Entries expire after the
// configured TTL; a TTL of zero keeps them until deleted.
type MemoryStore struct {
	cache     *cache.Cache
	keyPrefix string

	// serializes read-modify-write in UpdateFields
	mu sync.Mutex
}

func NewMemoryStore(cleanupInterval time.Duration, opts ...StoreOption) (*MemoryStore, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	expiration := o.ttl
	if expiration == 0 {
		expiration = cache.NoExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryStore{
		cache:     cache.New(expiration, cleanupInterval),
		keyPrefix: o.keyPrefix,
	}, nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Session, error) {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	return s.get(key)
}

func (s *MemoryStore) Save(_ context.Context, st *Session) error {
	if err := prepareForSave(st); err != nil {
		return err
	}
	key, err := sessionKey(s.keyPrefix, st.SessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, st.Clone(), cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, sessionID string, patch Fields) (*Session, error) {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.get(key)
	if err != nil {
		return nil, err
	}
	st.Fields.Merge(patch)
	st.Touch(time.Now())
	s.cache.Set(key, st.Clone(), cache.DefaultExpiration)
	return st, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) get(key string) (*Session, error) {
	x, found := s.cache.Get(key)
	if !found {
		return nil, ErrStateNotFound
	}
	return x.(*Session).Clone(), nil
}
