package workflow

import (
	"context"
	"sort"
	"sync"

	"edc/internal/record"
	"edc/internal/storage"
)

// InMemoryStore keeps workflow statuses in a map, stored by pointer like the
// row stores.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextPK   int64
	statuses map[int64]*record.WorkflowStatus
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{statuses: make(map[int64]*record.WorkflowStatus)}
}

func (s *InMemoryStore) Save(_ context.Context, status *record.WorkflowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status.PK == 0 {
		s.nextPK++
		status.PK = s.nextPK
	}
	s.statuses[status.PK] = status
	return nil
}

func (s *InMemoryStore) ByPK(_ context.Context, pk int64) (*record.WorkflowStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.statuses[pk]; ok {
		return status, nil
	}
	return nil, storage.ErrNotFound
}

func (s *InMemoryStore) ByWorkflowable(_ context.Context, workflowable record.Workflowable) ([]*record.WorkflowStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*record.WorkflowStatus
	for _, status := range s.statuses {
		if attachedTo(status, workflowable) {
			out = append(out, status)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PK < out[j].PK })
	return out, nil
}
