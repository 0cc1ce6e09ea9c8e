// Package bounded provides a capacity-limited key/value store with
// least-recently-used eviction.
//
// A Store keeps two orders: insertion order, used for iteration, and
// recency order, used to pick eviction victims. Reads through Get and
// writes through Put refresh recency; Peek, Items and Keys do not.
//
// Store is not safe for concurrent use.
package bounded

import (
	"errors"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrInvalidCapacity is returned by New when capacity is not positive.
var ErrInvalidCapacity = errors.New("bounded: capacity must be positive")

// DefaultCapacity is the capacity used for continuity sub-stores when none
// is configured.
const DefaultCapacity = 1000

// Store is a key/value container that never holds more than Cap entries.
type Store[K comparable, V any] struct {
	capacity int
	entries  *orderedmap.OrderedMap[K, V]
	recency  *orderedmap.OrderedMap[K, struct{}] // least recent first
	onEvict  func(K, V)
}

// New returns an empty store holding at most capacity entries.
func New[K comparable, V any](capacity int) (*Store[K, V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Store[K, V]{
		capacity: capacity,
		entries:  orderedmap.New[K, V](),
		recency:  orderedmap.New[K, struct{}](),
	}, nil
}

// OnEvict registers fn to be called with every evicted entry.
func (s *Store[K, V]) OnEvict(fn func(K, V)) {
	s.onEvict = fn
}

// Put inserts or updates key. Inserting a new key into a full store evicts
// the least recently touched key first.
func (s *Store[K, V]) Put(key K, value V) {
	if _, ok := s.entries.Get(key); ok {
		s.entries.Set(key, value)
		s.touch(key)
		return
	}
	if s.entries.Len() >= s.capacity {
		s.evictOldest()
	}
	s.entries.Set(key, value)
	s.recency.Set(key, struct{}{})
}

// Get returns the value stored under key and refreshes its recency.
func (s *Store[K, V]) Get(key K) (V, bool) {
	v, ok := s.entries.Get(key)
	if ok {
		s.touch(key)
	}
	return v, ok
}

// Peek returns the value stored under key without refreshing recency.
func (s *Store[K, V]) Peek(key K) (V, bool) {
	return s.entries.Get(key)
}

// Has reports whether key is present. Recency is not affected.
func (s *Store[K, V]) Has(key K) bool {
	_, ok := s.entries.Get(key)
	return ok
}

// Len returns the number of stored entries.
func (s *Store[K, V]) Len() int { return s.entries.Len() }

// Cap returns the fixed capacity.
func (s *Store[K, V]) Cap() int { return s.capacity }

// Items yields entries in insertion order. Each call returns a fresh
// sequence; iterating does not affect recency.
func (s *Store[K, V]) Items() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for p := s.entries.Oldest(); p != nil; p = p.Next() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Keys returns the keys in insertion order.
func (s *Store[K, V]) Keys() []K {
	keys := make([]K, 0, s.entries.Len())
	for k := range s.Items() {
		keys = append(keys, k)
	}
	return keys
}

func (s *Store[K, V]) touch(key K) {
	// MoveToBack only fails for unknown keys, which entries already ruled out.
	_ = s.recency.MoveToBack(key)
}

func (s *Store[K, V]) evictOldest() {
	victim := s.recency.Oldest()
	if victim == nil {
		return
	}
	s.recency.Delete(victim.Key)
	v, _ := s.entries.Delete(victim.Key)
	if s.onEvict != nil {
		s.onEvict(victim.Key, v)
	}
}
