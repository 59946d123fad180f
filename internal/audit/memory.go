package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

type key struct {
	entity string
	pk     int64
}

// InMemoryStore keeps trails in memory for tests and the default wiring.
type InMemoryStore struct {
	mu     sync.RWMutex
	trails map[key][]Trail
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{trails: make(map[key][]Trail)}
}

func (s *InMemoryStore) Append(_ context.Context, trail Trail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{entity: trail.Entity, pk: trail.EntityPK}
	s.trails[k] = append(s.trails[k], trail)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, entity string, entityPK int64, from, to *time.Time) ([]Trail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Trail
	for _, trail := range s.trails[key{entity: entity, pk: entityPK}] {
		if from != nil && trail.Time.Before(*from) {
			continue
		}
		if to != nil && trail.Time.After(*to) {
			continue
		}
		out = append(out, trail)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}
