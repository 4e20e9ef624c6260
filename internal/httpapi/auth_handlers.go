package httpapi

import (
	"net/http"
	"time"

	"mediport.org/internal/audit"
	"mediport.org/internal/patient"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	BloodGroup  string `json:"blood_group"`
	Phone       string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Patient   *patient.Patient `json:"patient"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.patients.Register(r.Context(), patient.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		DateOfBirth: req.DateOfBirth,
		BloodGroup:  req.BloodGroup,
		Phone:       req.Phone,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	raw, exp, err := a.tokens.IssuePatient(p.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "patient.registered", map[string]any{
		"patient_id": p.ID,
		"email":      p.Email,
	})

	writeJSON(w, http.StatusCreated, sessionResponse{Token: raw, ExpiresAt: exp, Patient: p})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.patients.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		_ = audit.LogEvent(r.Context(), "patient.login.failed", map[string]any{
			"email": req.Email,
		})
		handleDomainError(w, r, err)
		return
	}

	raw, exp, err := a.tokens.IssuePatient(p.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "patient.login", map[string]any{
		"patient_id": p.ID,
	})

	writeJSON(w, http.StatusOK, sessionResponse{Token: raw, ExpiresAt: exp, Patient: p})
}
