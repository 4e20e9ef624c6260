// Package token issues and verifies the signed bearer credentials used by
// the service: long-lived patient tokens and short-lived doctor tokens
// derived from a consumed access grant.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the two trust levels a token can carry. A doctor
// token is a derived, scoped credential and is never accepted where a
// patient token is required.
type Kind string

const (
	KindPatient Kind = "patient"
	KindDoctor  Kind = "doctor"
)

const (
	defaultIssuer     = "mediport"
	defaultPatientTTL = 7 * 24 * time.Hour
	defaultDoctorTTL  = 2 * time.Hour
)

var (
	// ErrInvalidToken indicates the token failed signature or shape validation.
	ErrInvalidToken = errors.New("token: invalid token")
	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token: expired token")
)

// Claims are the JWT claims carried by every mediport token.
type Claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Identity is the verified result of token validation.
type Identity struct {
	Subject   string
	Kind      Kind
	ExpiresAt time.Time
}

// Service signs and verifies HS256 tokens with a server-held secret.
// Verification is pure: no I/O, deterministic given the secret and clock.
type Service struct {
	secret     []byte
	issuer     string
	patientTTL time.Duration
	doctorTTL  time.Duration
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = strings.TrimSpace(issuer)
		}
	}
}

// WithPatientTTL overrides the patient token lifetime.
func WithPatientTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.patientTTL = ttl
		}
	}
}

// WithDoctorTTL overrides the doctor token lifetime.
func WithDoctorTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.doctorTTL = ttl
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

// NewService constructs a Service. The secret must be non-empty.
func NewService(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: secret is required")
	}
	svc := &Service{
		secret:     secret,
		issuer:     defaultIssuer,
		patientTTL: defaultPatientTTL,
		doctorTTL:  defaultDoctorTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IssuePatient mints a primary patient credential for the given patient id.
func (s *Service) IssuePatient(patientID string) (string, time.Time, error) {
	return s.issue(patientID, KindPatient, s.patientTTL)
}

// IssueDoctor mints a derived doctor credential scoped to exactly one
// patient id. Callers only reach this through access-grant consumption.
func (s *Service) IssueDoctor(patientID string) (string, time.Time, error) {
	return s.issue(patientID, KindDoctor, s.doctorTTL)
}

func (s *Service) issue(subject string, kind Kind, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("token: subject is required")
	}

	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify validates signature, issuer, subject and expiry and returns the
// token's identity. Expired-but-otherwise-valid tokens are reported as
// ErrExpiredToken; every other failure collapses to ErrInvalidToken.
func (s *Service) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if err := s.validateClaims(claims); err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		Subject:   claims.Subject,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) validateClaims(claims *Claims) error {
	if claims.Issuer != s.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.Kind != KindPatient && claims.Kind != KindDoctor {
		return fmt.Errorf("unknown token kind: %s", claims.Kind)
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	now := s.now().UTC()
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
