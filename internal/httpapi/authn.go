package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"mediport.org/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// requirePatient authenticates the bearer token and admits only patient
// tokens. A valid doctor token on a patient route is a scope violation,
// not an authentication failure, and gets 403.
func (a *API) requirePatient(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		ident, err := a.tokens.Verify(raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpiredToken):
				writeError(w, r, http.StatusUnauthorized, "token expired")
			case errors.Is(err, token.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		if ident.Kind != token.KindPatient {
			writeError(w, r, http.StatusForbidden, "patient token required")
			return
		}
		next(w, r.WithContext(token.ContextWithIdentity(r.Context(), ident)))
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	raw := strings.TrimSpace(header[len(bearer):])
	if raw == "" {
		return "", errors.New("missing bearer token")
	}
	return raw, nil
}
