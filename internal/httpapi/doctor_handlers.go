package httpapi

import (
	"net/http"
	"strings"
	"time"

	"mediport.org/internal/audit"
	"mediport.org/internal/patient"
)

type verifyAccessRequest struct {
	AccessCode string `json:"access_code"`
}

type verifyAccessResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Patient   *patient.Patient `json:"patient"`
}

// handleVerifyAccess is unauthenticated: the access code itself is the
// credential.
func (a *API) handleVerifyAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req verifyAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	code := strings.TrimSpace(req.AccessCode)
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "access_code is required")
		return
	}

	res, err := a.grants.Verify(r.Context(), code)
	if err != nil {
		_ = audit.LogEvent(r.Context(), "access.grant.verify.rejected", map[string]any{
			"reason": err.Error(),
		})
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "access.grant.consumed", map[string]any{
		"patient_id": res.Patient.ID,
		"expires_at": res.ExpiresAt,
	})

	writeJSON(w, http.StatusOK, verifyAccessResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Patient:   res.Patient,
	})
}
