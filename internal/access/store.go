package access

import "context"

// Store persists grants. Consume is the one operation that must be a
// single atomic conditional update: two concurrent consumers of the
// same code must never both succeed.
type Store interface {
	// Create persists a new grant. Returns ErrCodeExists when the code
	// is already present.
	Create(ctx context.Context, g *Grant) error
	// FindByCode returns the grant for the exact code, or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Grant, error)
	// Consume flips used false->true for the code. It reports true only
	// for the caller that performed the transition; every other caller,
	// concurrent or later, observes false.
	Consume(ctx context.Context, code string) (bool, error)
	// ListByPatient returns the patient's grants newest first, capped at limit.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]Grant, error)
}
