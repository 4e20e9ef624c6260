package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediport.org/internal/ids"
	"mediport.org/internal/obs"
	"mediport.org/internal/patient"
	"mediport.org/internal/token"
)

const (
	defaultGrantTTL = 24 * time.Hour
	// listCap bounds audit-history responses.
	listCap = 50
	// issueAttempts bounds retries when a generated code collides with
	// an existing row.
	issueAttempts = 5
)

const (
	MethodOTP = "otp"
	MethodQR  = "qr"
)

// ErrInvalidMethod rejects delivery methods other than "otp" and "qr".
var ErrInvalidMethod = errors.New("access: method must be \"otp\" or \"qr\"")

// PatientDirectory is the patient lookup the grant manager needs.
// *patient.Service satisfies it.
type PatientDirectory interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

// Service is the access-grant state machine: Issued -> Consumed, or
// Issued -> Expired by time. Both terminal states refuse consumption
// and the grant record is retained either way.
type Service struct {
	store    Store
	patients PatientDirectory
	tokens   *token.Service
	qr       Encoder
	ttl      time.Duration
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithGrantTTL overrides the 24h grant lifetime.
func WithGrantTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithEncoder overrides the QR image encoder.
func WithEncoder(enc Encoder) Option {
	return func(s *Service) {
		if enc != nil {
			s.qr = enc
		}
	}
}

// NewService constructs the grant manager.
func NewService(store Store, patients PatientDirectory, tokens *token.Service, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		patients: patients,
		tokens:   tokens,
		qr:       QRPNG{},
		ttl:      defaultGrantTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// IssueResult is returned to the patient who requested a code.
type IssueResult struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	QRCode    string    `json:"qr_code,omitempty"`
}

// Issue creates a grant for the patient: fresh high-entropy code,
// display-name snapshot, 24h expiry, used=false. Method "qr"
// additionally renders the code as a PNG data URI.
func (s *Service) Issue(ctx context.Context, patientID, method string) (IssueResult, error) {
	if method != MethodOTP && method != MethodQR {
		return IssueResult{}, ErrInvalidMethod
	}
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return IssueResult{}, err
	}

	now := s.now().UTC()
	grant := &Grant{
		PatientID:   p.ID,
		PatientName: p.FullName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	// Codes are random, not sequenced; collisions are possible in
	// principle, so uniqueness is enforced on insert and issuance
	// retries with a fresh code.
	for attempt := 0; ; attempt++ {
		code, err := newCode()
		if err != nil {
			return IssueResult{}, err
		}
		grant.ID = ids.New()
		grant.Code = code
		err = s.store.Create(ctx, grant)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrCodeExists) || attempt+1 >= issueAttempts {
			return IssueResult{}, fmt.Errorf("persist grant: %w", err)
		}
	}

	res := IssueResult{Code: grant.Code, ExpiresAt: grant.ExpiresAt}
	if method == MethodQR {
		png, err := s.qr.EncodePNG(grant.Code)
		if err != nil {
			return IssueResult{}, fmt.Errorf("encode qr: %w", err)
		}
		res.QRCode = dataURI(png)
	}
	obs.GrantIssued(method)
	return res, nil
}

// VerifyResult is returned to the doctor who consumed a code.
type VerifyResult struct {
	Token     string
	ExpiresAt time.Time
	Patient   *patient.Patient
}

// Verify consumes a code exactly once and mints a doctor token scoped to
// the owning patient. Order of failures: unknown code, already used,
// expired; the used check precedes the expiry check so a grant that is
// both reports the more specific state.
func (s *Service) Verify(ctx context.Context, code string) (VerifyResult, error) {
	grant, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.GrantVerification("not_found")
		}
		return VerifyResult{}, err
	}
	if grant.Used {
		obs.GrantVerification("already_used")
		return VerifyResult{}, ErrAlreadyUsed
	}
	if s.now().UTC().After(grant.ExpiresAt) {
		obs.GrantVerification("expired")
		return VerifyResult{}, ErrExpired
	}

	// The atomic conditional update is the only success path: of any
	// number of concurrent callers holding the same code, exactly one
	// gets ok=true here.
	ok, err := s.store.Consume(ctx, code)
	if err != nil {
		return VerifyResult{}, err
	}
	if !ok {
		obs.GrantVerification("already_used")
		return VerifyResult{}, ErrAlreadyUsed
	}

	// Fresh read, not the issuance snapshot. A missing patient is an
	// inconsistency surfaced as an error, never a crash.
	p, err := s.patients.Get(ctx, grant.PatientID)
	if err != nil {
		return VerifyResult{}, err
	}

	doctorToken, exp, err := s.tokens.IssueDoctor(p.ID)
	if err != nil {
		return VerifyResult{}, err
	}
	obs.GrantVerification("consumed")
	return VerifyResult{Token: doctorToken, ExpiresAt: exp, Patient: p}, nil
}

// ListForPatient returns the patient's grant history, newest first,
// capped at 50. Read-only; consumed and expired grants stay listed.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]Grant, error) {
	return s.store.ListByPatient(ctx, patientID, listCap)
}
