package storage

import (
	"context"
	"sort"
	"sync"

	"edc/internal/record"
)

// In-memory stores keep the initial implementation lightweight and testable.
// They intentionally favor clarity over performance. Rows are stored by
// pointer: inside one request every reader observes the same instance, which
// mirrors the single-transaction model of the persistent stores.
type InMemoryScopeStore struct {
	mu     sync.RWMutex
	nextPK int64
	scopes map[int64]*record.Scope
}

func NewInMemoryScopeStore() *InMemoryScopeStore {
	return &InMemoryScopeStore{scopes: make(map[int64]*record.Scope)}
}

func (s *InMemoryScopeStore) Save(_ context.Context, scope *record.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope.PK == 0 {
		s.nextPK++
		scope.PK = s.nextPK
	}
	s.scopes[scope.PK] = scope
	return nil
}

func (s *InMemoryScopeStore) ByPK(_ context.Context, pk int64) (*record.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if scope, ok := s.scopes[pk]; ok {
		return scope, nil
	}
	return nil, ErrNotFound
}

type InMemoryEventStore struct {
	mu     sync.RWMutex
	nextPK int64
	events map[int64]*record.Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{events: make(map[int64]*record.Event)}
}

func (s *InMemoryEventStore) Save(_ context.Context, event *record.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.PK == 0 {
		s.nextPK++
		event.PK = s.nextPK
	}
	s.events[event.PK] = event
	return nil
}

func (s *InMemoryEventStore) ByPK(_ context.Context, pk int64) (*record.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if event, ok := s.events[pk]; ok {
		return event, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryEventStore) ByScope(_ context.Context, scopePK int64) ([]*record.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*record.Event
	for _, event := range s.events {
		if event.ScopeFK == scopePK {
			out = append(out, event)
		}
	}
	sortByPK(out, func(e *record.Event) int64 { return e.PK })
	return out, nil
}

type InMemoryDatasetStore struct {
	mu       sync.RWMutex
	nextPK   int64
	datasets map[int64]*record.Dataset
}

func NewInMemoryDatasetStore() *InMemoryDatasetStore {
	return &InMemoryDatasetStore{datasets: make(map[int64]*record.Dataset)}
}

func (s *InMemoryDatasetStore) Save(_ context.Context, dataset *record.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dataset.PK == 0 {
		s.nextPK++
		dataset.PK = s.nextPK
	}
	s.datasets[dataset.PK] = dataset
	return nil
}

func (s *InMemoryDatasetStore) ByPK(_ context.Context, pk int64) (*record.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dataset, ok := s.datasets[pk]; ok {
		return dataset, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryDatasetStore) ByScope(_ context.Context, scopePK int64) ([]*record.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*record.Dataset
	for _, dataset := range s.datasets {
		if dataset.ScopeFK == scopePK && dataset.EventFK == nil {
			out = append(out, dataset)
		}
	}
	sortByPK(out, func(d *record.Dataset) int64 { return d.PK })
	return out, nil
}

func (s *InMemoryDatasetStore) ByEvent(_ context.Context, eventPK int64) ([]*record.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*record.Dataset
	for _, dataset := range s.datasets {
		if dataset.EventFK != nil && *dataset.EventFK == eventPK {
			out = append(out, dataset)
		}
	}
	sortByPK(out, func(d *record.Dataset) int64 { return d.PK })
	return out, nil
}

type InMemoryFieldStore struct {
	mu     sync.RWMutex
	nextPK int64
	fields map[int64]*record.Field
}

func NewInMemoryFieldStore() *InMemoryFieldStore {
	return &InMemoryFieldStore{fields: make(map[int64]*record.Field)}
}

func (s *InMemoryFieldStore) Save(_ context.Context, field *record.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field.PK == 0 {
		s.nextPK++
		field.PK = s.nextPK
	}
	s.fields[field.PK] = field
	return nil
}

func (s *InMemoryFieldStore) ByPK(_ context.Context, pk int64) (*record.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if field, ok := s.fields[pk]; ok {
		return field, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryFieldStore) ByDataset(_ context.Context, datasetPK int64) ([]*record.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*record.Field
	for _, field := range s.fields {
		if field.DatasetFK == datasetPK {
			out = append(out, field)
		}
	}
	sortByPK(out, func(f *record.Field) int64 { return f.PK })
	return out, nil
}

type InMemoryFormStore struct {
	mu     sync.RWMutex
	nextPK int64
	forms  map[int64]*record.Form
}

func NewInMemoryFormStore() *InMemoryFormStore {
	return &InMemoryFormStore{forms: make(map[int64]*record.Form)}
}

func (s *InMemoryFormStore) Save(_ context.Context, form *record.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if form.PK == 0 {
		s.nextPK++
		form.PK = s.nextPK
	}
	s.forms[form.PK] = form
	return nil
}

func (s *InMemoryFormStore) ByPK(_ context.Context, pk int64) (*record.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if form, ok := s.forms[pk]; ok {
		return form, nil
	}
	return nil, ErrNotFound
}

func sortByPK[T any](items []T, pk func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return pk(items[i]) < pk(items[j]) })
}
