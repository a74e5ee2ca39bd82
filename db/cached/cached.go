// Package cached puts a bounded LRU in front of a fact store. Facts are content addressed and
// never rewritten, so cached entries never go stale.
package cached

import (
	"context"
	"fmt"

	"github.com/NethermindEth/stark-state/db"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stark_state",
	Subsystem: "fact_cache",
	Name:      "lookups_total",
	Help:      "Fact cache lookups partitioned by hit.",
}, []string{"hit"})

var _ db.Storage = (*Storage)(nil)

// Storage is safe for concurrent use when the wrapped storage is.
type Storage struct {
	db.Storage
	cache *lru.Cache[string, []byte]
}

func New(storage db.Storage, size int) (*Storage, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create fact cache: %w", err)
	}
	return &Storage{Storage: storage, cache: cache}, nil
}

func (s *Storage) Get(ctx context.Context, key []byte) ([]byte, error) {
	if val, ok := s.cache.Get(string(key)); ok {
		lookups.WithLabelValues("true").Inc()
		return val, nil
	}
	lookups.WithLabelValues("false").Inc()

	val, err := s.Storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(string(key), val)
	return val, nil
}

func (s *Storage) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	var misses [][]byte
	for _, key := range keys {
		if val, ok := s.cache.Get(string(key)); ok {
			result[string(key)] = val
		} else {
			misses = append(misses, key)
		}
	}
	lookups.WithLabelValues("true").Add(float64(len(result)))
	lookups.WithLabelValues("false").Add(float64(len(misses)))
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := s.Storage.GetMany(ctx, misses)
	if err != nil {
		return nil, err
	}
	for key, val := range fetched {
		s.cache.Add(key, val)
		result[key] = val
	}
	return result, nil
}

func (s *Storage) Put(ctx context.Context, key, value []byte) error {
	if err := s.Storage.Put(ctx, key, value); err != nil {
		return err
	}
	s.cache.Add(string(key), value)
	return nil
}

func (s *Storage) PutMany(ctx context.Context, entries map[string][]byte) error {
	if err := s.Storage.PutMany(ctx, entries); err != nil {
		return err
	}
	for key, val := range entries {
		s.cache.Add(key, val)
	}
	return nil
}

// Len returns the number of cached entries.
func (s *Storage) Len() int {
	return s.cache.Len()
}
