package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

// Store is an in-process key-value store. Entries vanish with the process.
type Store struct {
	cache *cache.Cache
}

// New creates a store whose entries expire after retention. Zero keeps them
// until deleted.
func New(retention time.Duration) *Store {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if retention > 0 {
		expiration = retention
		cleanup = retention / 2
	}
	return &Store{cache: cache.New(expiration, cleanup)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	x, found := s.cache.Get(key)
	if !found {
		return nil, domain.WrapError(domain.ErrKeyNotFound, "memory get", fmt.Errorf("key %q", key))
	}
	value := x.([]byte)
	return append([]byte(nil), value...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, append([]byte(nil), value...), cache.DefaultExpiration)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
