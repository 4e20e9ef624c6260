// Package patient owns patient identity, profile and medical-record data.
package patient

import (
	"errors"
	"time"
)

// Patient is the full stored record. The password hash never leaves the
// service boundary in any serialized form.
type Patient struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	PasswordHash     string          `json:"-"`
	FullName         string          `json:"full_name"`
	DateOfBirth      string          `json:"date_of_birth"`
	BloodGroup       string          `json:"blood_group"`
	Phone            string          `json:"phone"`
	Allergies        []string        `json:"allergies"`
	Medications      []string        `json:"medications"`
	MedicalRecords   []MedicalRecord `json:"medical_records"`
	EmergencyContact string          `json:"emergency_contact"`
	CreatedAt        time.Time       `json:"created_at"`
}

// MedicalRecord is embedded in a patient, append-only and immutable once
// created.
type MedicalRecord struct {
	ID            string    `json:"id"`
	Condition     string    `json:"condition"`
	DiagnosisDate string    `json:"diagnosis_date"`
	Treatment     string    `json:"treatment"`
	DoctorName    string    `json:"doctor_name"`
	Hospital      string    `json:"hospital"`
	Notes         string    `json:"notes"`
	AddedAt       time.Time `json:"added_at"`
}

// ProfileUpdate carries the partially updatable profile fields. A nil
// pointer leaves the field untouched; a present pointer replaces the
// prior value wholesale.
type ProfileUpdate struct {
	Allergies        *[]string
	Medications      *[]string
	EmergencyContact *string
}

// IsEmpty reports whether no field is being updated.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Allergies == nil && u.Medications == nil && u.EmergencyContact == nil
}

var (
	ErrDuplicateEmail = errors.New("patient: email already registered")
	// ErrInvalidCredentials is returned uniformly for unknown email and
	// wrong password, so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("patient: invalid credentials")
	ErrNotFound           = errors.New("patient: not found")
	ErrInvalidInput       = errors.New("patient: invalid input")
)
