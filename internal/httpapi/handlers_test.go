package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mediport.org/internal/access"
	"mediport.org/internal/patient"
	"mediport.org/internal/token"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T, opts ...Option) *apiClient {
	t.Helper()

	tokens, err := token.NewService([]byte("test-secret"))
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	patients := patient.NewService(patient.NewInMemory())
	grants := access.NewService(access.NewInMemory(), patients, tokens)

	api := New(ReadyProbe{}, "test", patients, grants, tokens,
		append([]Option{WithRateLimit(1000, 1000)}, opts...)...)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) put(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPut, path, body, headers)
}

func authz(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (c *apiClient) register(email string) sessionResponse {
	c.t.Helper()
	resp := c.post("/auth/register", map[string]any{
		"email":         email,
		"password":      "hunter2hunter2",
		"full_name":     "Jane Doe",
		"date_of_birth": "1990-04-02",
		"blood_group":   "O+",
		"phone":         "+1-555-0100",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register status: %d", resp.StatusCode)
	}
	sess := decode[sessionResponse](c.t, resp)
	if sess.Token == "" || sess.Patient == nil {
		c.t.Fatalf("incomplete register response: %+v", sess)
	}
	return sess
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	c := newTestAPI(t)
	sess := c.register("jane@example.com")

	if sess.Patient.Email != "jane@example.com" || sess.Patient.ID == "" {
		t.Fatalf("unexpected patient: %+v", sess.Patient)
	}
	if sess.Patient.Allergies == nil || len(sess.Patient.Allergies) != 0 {
		t.Fatalf("allergies should be an empty list: %+v", sess.Patient.Allergies)
	}

	// Duplicate registration is a conflict.
	resp := c.post("/auth/register", map[string]any{
		"email": "jane@example.com", "password": "x", "full_name": "Jane Doe",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Login works with the right password.
	resp = c.post("/auth/login", map[string]any{
		"email": "jane@example.com", "password": "hunter2hunter2",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	login := decode[sessionResponse](t, resp)

	// Profile requires the token and returns the full record.
	resp = c.get("/patient/profile", authz(login.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status: %d", resp.StatusCode)
	}
	p := decode[patient.Patient](t, resp)
	if p.FullName != "Jane Doe" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	resp = c.get("/patient/profile", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated profile status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginFailuresAreUniform(t *testing.T) {
	c := newTestAPI(t)
	c.register("jane@example.com")

	wrongPassword := c.post("/auth/login", map[string]any{
		"email": "jane@example.com", "password": "nope",
	}, nil)
	unknownEmail := c.post("/auth/login", map[string]any{
		"email": "ghost@example.com", "password": "nope",
	}, nil)
	defer wrongPassword.Body.Close()
	defer unknownEmail.Body.Close()

	if wrongPassword.StatusCode != http.StatusUnauthorized || unknownEmail.StatusCode != http.StatusUnauthorized {
		t.Fatalf("statuses: %d / %d", wrongPassword.StatusCode, unknownEmail.StatusCode)
	}

	var a, b map[string]any
	if err := json.NewDecoder(wrongPassword.Body).Decode(&a); err != nil {
		t.Fatal(err)
	}
	if err := json.NewDecoder(unknownEmail.Body).Decode(&b); err != nil {
		t.Fatal(err)
	}
	if a["error"] != b["error"] {
		t.Fatalf("failure bodies differ: %v vs %v", a["error"], b["error"])
	}
}

func TestPasswordNeverSerialized(t *testing.T) {
	c := newTestAPI(t)
	sess := c.register("jane@example.com")

	resp := c.get("/patient/profile", authz(sess.Token))
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	body := strings.ToLower(string(raw))
	if strings.Contains(body, "password") || strings.Contains(body, "$2a$") {
		t.Fatalf("profile leaks password material: %s", body)
	}
}

func TestProfileUpdateAndMedicalRecord(t *testing.T) {
	c := newTestAPI(t)
	sess := c.register("jane@example.com")

	resp := c.put("/patient/profile", map[string]any{
		"allergies":         []string{"penicillin"},
		"emergency_contact": "+1-555-0199",
	}, authz(sess.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %d", resp.StatusCode)
	}
	p := decode[patient.Patient](t, resp)
	if len(p.Allergies) != 1 || p.Allergies[0] != "penicillin" || p.EmergencyContact != "+1-555-0199" {
		t.Fatalf("update not applied: %+v", p)
	}
	if p.Phone != "+1-555-0100" {
		t.Fatalf("untouched field changed: %+v", p)
	}

	resp = c.post("/patient/medical-record", map[string]any{
		"condition":      "Asthma",
		"diagnosis_date": "2020-01-15",
		"treatment":      "Inhaler",
	}, authz(sess.Token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record status: %d", resp.StatusCode)
	}
	rec := decode[recordResponse](t, resp)
	if rec.Record.ID == "" || rec.Record.Condition != "Asthma" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	resp = c.get("/patient/profile", authz(sess.Token))
	p = decode[patient.Patient](t, resp)
	if len(p.MedicalRecords) != 1 || p.MedicalRecords[0].ID != rec.Record.ID {
		t.Fatalf("record not attached: %+v", p.MedicalRecords)
	}
}

func TestAccessGrantLifecycle(t *testing.T) {
	c := newTestAPI(t)
	sess := c.register("jane@example.com")

	resp := c.post("/patient/generate-access", map[string]any{"method": "otp"}, authz(sess.Token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status: %d", resp.StatusCode)
	}
	issued := decode[access.IssueResult](t, resp)
	if issued.Code == "" || issued.QRCode != "" {
		t.Fatalf("unexpected issue result: %+v", issued)
	}

	// The code verifies once and yields a doctor view of the patient.
	resp = c.post("/doctor/verify-access", map[string]any{"access_code": issued.Code}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status: %d", resp.StatusCode)
	}
	verified := decode[verifyAccessResponse](t, resp)
	if verified.Token == "" || verified.Patient.ID != sess.Patient.ID {
		t.Fatalf("unexpected verify response: %+v", verified)
	}

	// Second consumption conflicts.
	resp = c.post("/doctor/verify-access", map[string]any{"access_code": issued.Code}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second verify status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown codes are 404.
	resp = c.post("/doctor/verify-access", map[string]any{"access_code": "WRONG234"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown code status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The doctor token is scoped: patient routes refuse it.
	resp = c.get("/patient/profile", authz(verified.Token))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("doctor token on patient route: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The consumed grant stays in the history, marked used.
	resp = c.get("/patient/access-logs", authz(sess.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("access-logs status: %d", resp.StatusCode)
	}
	logs := decode[[]access.Grant](t, resp)
	if len(logs) != 1 || !logs[0].Used || logs[0].Code != issued.Code {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestGenerateAccessQR(t *testing.T) {
	c := newTestAPI(t)
	sess := c.register("jane@example.com")

	resp := c.post("/patient/generate-access", map[string]any{"method": "qr"}, authz(sess.Token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status: %d", resp.StatusCode)
	}
	issued := decode[access.IssueResult](t, resp)
	if !strings.HasPrefix(issued.QRCode, "data:image/png;base64,") {
		t.Fatalf("expected PNG data URI, got %.40q", issued.QRCode)
	}

	resp = c.post("/patient/generate-access", map[string]any{"method": "fax"}, authz(sess.Token))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad method status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConfiguredBodyCapAppliesToJSON(t *testing.T) {
	big := strings.Repeat("x", 2<<20)

	// Over the default 1 MiB cap: rejected.
	c := newTestAPI(t)
	resp := c.post("/auth/register", map[string]any{
		"email": "big@example.com", "password": "pw", "full_name": big,
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized body with default cap: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A raised cap must actually apply to JSON bodies as well.
	c = newTestAPI(t, WithMaxBodyBytes(4<<20))
	resp = c.post("/auth/register", map[string]any{
		"email": "big@example.com", "password": "pw", "full_name": big,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("body within configured cap rejected: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestInvalidTokenRejected(t *testing.T) {
	c := newTestAPI(t)
	c.register("jane@example.com")

	resp := c.get("/patient/profile", authz("not-a-token"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/patient/profile", map[string]string{"Authorization": "Basic abc"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong scheme status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthAndMethodGuards(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("healthz body: %v", body)
	}

	resp = c.get("/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/auth/register", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET register status: %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow header: %q", allow)
	}
	resp.Body.Close()
}

func TestRequestIDEchoed(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", map[string]string{"X-Request-Id": "req-42"})
	defer resp.Body.Close()
	if got := resp.Header.Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("client request id not echoed: %q", got)
	}

	resp2 := c.get("/healthz", nil)
	defer resp2.Body.Close()
	if resp2.Header.Get("X-Request-Id") == "" {
		t.Fatal("server should assign a request id")
	}
}
