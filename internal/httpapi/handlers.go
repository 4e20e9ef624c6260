package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"mediport.org/internal/access"
	"mediport.org/internal/obs"
	"mediport.org/internal/patient"
	"mediport.org/internal/token"
)

// ReadyProbe reports whether the service can take traffic (DB ping when
// a database is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the patient, access and token services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	patients *patient.Service
	grants   *access.Service
	tokens   *token.Service

	maxBodyBytes int64
	rateBurst    int
	ratePerSec   float64
}

// Option configures the API.
type Option func(*API)

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(perSec float64, burst int) Option {
	return func(a *API) {
		if perSec > 0 {
			a.ratePerSec = perSec
		}
		if burst > 0 {
			a.rateBurst = burst
		}
	}
}

func New(rp ReadyProbe, version string, patients *patient.Service, grants *access.Service, tokens *token.Service, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		patients:     patients,
		grants:       grants,
		tokens:       tokens,
		maxBodyBytes: 1 << 20,
		rateBurst:    100,
		ratePerSec:   50,
	}
	for _, opt := range opts {
		opt(a)
	}

	// public
	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/doctor/verify-access", a.handleVerifyAccess)

	// patient-token protected
	a.mux.HandleFunc("/patient/profile", a.requirePatient(a.handleProfile))
	a.mux.HandleFunc("/patient/medical-record", a.requirePatient(a.handleMedicalRecord))
	a.mux.HandleFunc("/patient/generate-access", a.requirePatient(a.handleGenerateAccess))
	a.mux.HandleFunc("/patient/access-logs", a.requirePatient(a.handleAccessLogs))

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mediport-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// decodeJSON parses a strict single-object body. Size limits are
// enforced upstream by the MaxBodyBytes middleware.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleDomainError maps service errors onto HTTP statuses. Unmapped
// errors never leak details to the client.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, patient.ErrInvalidInput), errors.Is(err, access.ErrInvalidMethod):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, patient.ErrInvalidCredentials),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrExpiredToken):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, patient.ErrNotFound), errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, patient.ErrDuplicateEmail), errors.Is(err, access.ErrAlreadyUsed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrExpired):
		writeError(w, r, http.StatusGone, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
