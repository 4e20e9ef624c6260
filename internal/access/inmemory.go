package access

import (
	"context"
	"sort"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. The
// used-flag flip in Consume checks the prior value under the write lock,
// giving the same exactly-once guarantee as the SQL conditional update.
type InMemory struct {
	mu     sync.RWMutex
	byCode map[string]*Grant
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty grant store.
func NewInMemory() *InMemory {
	return &InMemory{byCode: make(map[string]*Grant)}
}

func (s *InMemory) Create(ctx context.Context, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[g.Code]; ok {
		return ErrCodeExists
	}
	stored := *g
	s.byCode[g.Code] = &stored
	return nil
}

func (s *InMemory) FindByCode(ctx context.Context, code string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	out := *g
	return &out, nil
}

func (s *InMemory) Consume(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.byCode[code]
	if !ok {
		return false, ErrNotFound
	}
	if g.Used {
		return false, nil
	}
	g.Used = true
	return true, nil
}

func (s *InMemory) ListByPatient(ctx context.Context, patientID string, limit int) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Grant{}
	for _, g := range s.byCode {
		if g.PatientID == patientID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
