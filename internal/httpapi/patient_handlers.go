package httpapi

import (
	"net/http"

	"mediport.org/internal/audit"
	"mediport.org/internal/patient"
	"mediport.org/internal/token"
)

type profileUpdateRequest struct {
	Allergies        *[]string `json:"allergies"`
	Medications      *[]string `json:"medications"`
	EmergencyContact *string   `json:"emergency_contact"`
}

type recordRequest struct {
	Condition     string `json:"condition"`
	DiagnosisDate string `json:"diagnosis_date"`
	Treatment     string `json:"treatment"`
	DoctorName    string `json:"doctor_name"`
	Hospital      string `json:"hospital"`
	Notes         string `json:"notes"`
}

type recordResponse struct {
	Message string                `json:"message"`
	Record  patient.MedicalRecord `json:"record"`
}

type generateAccessRequest struct {
	Method string `json:"method"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getProfile(w, r)
	case http.MethodPut:
		a.updateProfile(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	ident, _ := token.IdentityFromContext(r.Context())
	p, err := a.patients.Get(r.Context(), ident.Subject)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ident, _ := token.IdentityFromContext(r.Context())
	p, err := a.patients.UpdateProfile(r.Context(), ident.Subject, patient.ProfileUpdate{
		Allergies:        req.Allergies,
		Medications:      req.Medications,
		EmergencyContact: req.EmergencyContact,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleMedicalRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ident, _ := token.IdentityFromContext(r.Context())
	rec, err := a.patients.AppendRecord(r.Context(), ident.Subject, patient.RecordInput{
		Condition:     req.Condition,
		DiagnosisDate: req.DiagnosisDate,
		Treatment:     req.Treatment,
		DoctorName:    req.DoctorName,
		Hospital:      req.Hospital,
		Notes:         req.Notes,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "patient.record.added", map[string]any{
		"record_id": rec.ID,
	})

	writeJSON(w, http.StatusCreated, recordResponse{
		Message: "Record added successfully",
		Record:  rec,
	})
}

func (a *API) handleGenerateAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req generateAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ident, _ := token.IdentityFromContext(r.Context())
	res, err := a.grants.Issue(r.Context(), ident.Subject, req.Method)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	// The code itself stays out of the audit trail.
	_ = audit.LogEvent(r.Context(), "access.grant.issued", map[string]any{
		"method":     req.Method,
		"expires_at": res.ExpiresAt,
	})

	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleAccessLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	ident, _ := token.IdentityFromContext(r.Context())
	grants, err := a.grants.ListForPatient(r.Context(), ident.Subject)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}
