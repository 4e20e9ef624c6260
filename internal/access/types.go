// Package access implements the time-boxed, single-use access-grant
// protocol: issuance, encoding, verification and exactly-once
// consumption of short codes that bridge a patient identity to a
// temporary doctor identity.
package access

import (
	"errors"
	"time"
)

// Grant is one issued access code. Grants are never deleted: once
// consumed or past expiry they stay behind as an issuance log.
type Grant struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	PatientID string    `json:"patient_id"`
	// PatientName is snapshotted at issuance and not live-updated.
	PatientName string    `json:"patient_name"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Used        bool      `json:"used"`
}

// Valid reports whether the grant can still be consumed at the given time.
func (g Grant) Valid(now time.Time) bool {
	return !g.Used && !now.After(g.ExpiresAt)
}

var (
	ErrNotFound    = errors.New("access: code not found")
	ErrAlreadyUsed = errors.New("access: code already used")
	ErrExpired     = errors.New("access: code expired")
	// ErrCodeExists is returned by stores when an issued code collides
	// with an existing one; issuance retries with a fresh code.
	ErrCodeExists = errors.New("access: code already exists")
)
