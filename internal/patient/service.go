package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service provides registration, authentication and record operations on
// top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service backed by the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// RegisterInput carries the fields required to create a patient.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	DateOfBirth string
	BloodGroup  string
	Phone       string
}

func (in RegisterInput) validate() error {
	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return fmt.Errorf("%w: full_name is required", ErrInvalidInput)
	}
	return nil
}

// Register creates a new patient with a freshly hashed password and
// empty allergy/medication/record collections.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	p := &Patient{
		ID:             uuid.NewString(),
		Email:          in.Email,
		PasswordHash:   hash,
		FullName:       in.FullName,
		DateOfBirth:    in.DateOfBirth,
		BloodGroup:     in.BloodGroup,
		Phone:          in.Phone,
		Allergies:      []string{},
		Medications:    []string{},
		MedicalRecords: []MedicalRecord{},
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Authenticate looks up a patient by email and verifies the password.
// Unknown email and wrong password fail identically.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Patient, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(p.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// Get loads a patient by id.
func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.store.FindByID(ctx, id)
}

// UpdateProfile replaces the present fields wholesale; an empty update
// still returns the current record.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Patient, error) {
	if upd.IsEmpty() {
		return s.store.FindByID(ctx, id)
	}
	return s.store.UpdateProfile(ctx, id, upd)
}

// RecordInput carries the fields of a new medical record.
type RecordInput struct {
	Condition     string
	DiagnosisDate string
	Treatment     string
	DoctorName    string
	Hospital      string
	Notes         string
}

func (in RecordInput) validate() error {
	if strings.TrimSpace(in.Condition) == "" {
		return fmt.Errorf("%w: condition is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.DiagnosisDate) == "" {
		return fmt.Errorf("%w: diagnosis_date is required", ErrInvalidInput)
	}
	return nil
}

// AppendRecord appends a new immutable medical record and returns it.
func (s *Service) AppendRecord(ctx context.Context, id string, in RecordInput) (MedicalRecord, error) {
	if err := in.validate(); err != nil {
		return MedicalRecord{}, err
	}
	rec := MedicalRecord{
		ID:            uuid.NewString(),
		Condition:     in.Condition,
		DiagnosisDate: in.DiagnosisDate,
		Treatment:     in.Treatment,
		DoctorName:    in.DoctorName,
		Hospital:      in.Hospital,
		Notes:         in.Notes,
		AddedAt:       s.now().UTC(),
	}
	if err := s.store.AppendRecord(ctx, id, rec); err != nil {
		return MedicalRecord{}, err
	}
	return rec, nil
}
