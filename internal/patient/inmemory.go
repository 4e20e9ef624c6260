package patient

import (
	"context"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. Used in
// tests and when no database DSN is configured.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[string]*Patient
	byEmail map[string]string // email -> id
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[string]*Patient),
		byEmail: make(map[string]string),
	}
}

func (s *InMemory) Create(ctx context.Context, p *Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[p.Email]; ok {
		return ErrDuplicateEmail
	}
	stored := clone(p)
	s.byID[p.ID] = stored
	s.byEmail[p.Email] = p.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *InMemory) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Allergies != nil {
		p.Allergies = append([]string(nil), (*upd.Allergies)...)
	}
	if upd.Medications != nil {
		p.Medications = append([]string(nil), (*upd.Medications)...)
	}
	if upd.EmergencyContact != nil {
		p.EmergencyContact = *upd.EmergencyContact
	}
	return clone(p), nil
}

func (s *InMemory) AppendRecord(ctx context.Context, id string, rec MedicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.MedicalRecords = append(p.MedicalRecords, rec)
	return nil
}

// clone returns a deep copy so callers never share slices with the
// store. Nil slices come back empty, matching the stored shape.
func clone(p *Patient) *Patient {
	out := *p
	out.Allergies = cloneStrings(p.Allergies)
	out.Medications = cloneStrings(p.Medications)
	out.MedicalRecords = append([]MedicalRecord{}, p.MedicalRecords...)
	return &out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
