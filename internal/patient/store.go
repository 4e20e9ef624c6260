package patient

import "context"

// Store describes persistence operations for patient records. Profile
// updates and record appends tolerate last-writer-wins semantics; no
// conditional update is required here.
type Store interface {
	// Create persists a new patient. Returns ErrDuplicateEmail when the
	// email is already registered.
	Create(ctx context.Context, p *Patient) error
	// FindByID loads the full record including medical records.
	FindByID(ctx context.Context, id string) (*Patient, error)
	// FindByEmail matches the stored email exactly (case-sensitive).
	FindByEmail(ctx context.Context, email string) (*Patient, error)
	// UpdateProfile applies the present fields wholesale and returns the
	// resulting record.
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Patient, error)
	// AppendRecord appends one medical record in insertion order.
	AppendRecord(ctx context.Context, id string, rec MedicalRecord) error
}
