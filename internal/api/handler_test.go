package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"meridian/banking-api/internal/admission"
	"meridian/banking-api/internal/api"
	"meridian/banking-api/internal/domain"
	"meridian/banking-api/internal/session"
)

// ─── Collaborator stubs ───────────────────────────────────────────────────────

// stubChallenger hands out a fixed code so tests can verify it.
type stubChallenger struct {
	code string
	err  error
}

func (s *stubChallenger) Issue(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.code, nil
}

// stubClassifier returns a canned verdict.
type stubClassifier struct {
	verdict bool
	err     error
}

func (s *stubClassifier) Flag(*domain.Transaction) (bool, error) {
	return s.verdict, s.err
}

// ─── Test server setup ────────────────────────────────────────────────────────

// client wraps an httptest server with a cookie jar so the session cookie
// survives across requests, the way a browser session would.
type client struct {
	srv  *httptest.Server
	http *http.Client
}

func newTestServer(t *testing.T, cl *stubClassifier, ch *stubChallenger) *httptest.Server {
	t.Helper()
	sessions := session.NewManager()
	controller := admission.New(cl, ch, decimal.NewFromInt(10000))
	h := api.NewHandler(controller)
	srv := httptest.NewServer(api.NewRouter(h, sessions))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{srv: srv, http: &http.Client{Jar: jar}}
}

func (c *client) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := c.http.Post(c.srv.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (c *client) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := c.http.Get(c.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var env map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	d, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no 'data' key: %v", env)
	}
	return d
}

func decodeError(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var env map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	e, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no 'error' key: %v", env)
	}
	return e
}

func shoppingPayload(amount float64) map[string]any {
	return map[string]any{
		"kind":   "Online Shopping",
		"amount": amount,
		"fields": map[string]string{
			"merchant":    "Acme Store",
			"card_number": "4111111111111111",
			"expiry":      "12/28",
			"cvv":         "123",
		},
		"location": "London",
		"phone":    "+15551234567",
	}
}

func transferPayload(amount float64) map[string]any {
	return map[string]any{
		"kind":   "Fund Transfer",
		"amount": amount,
		"fields": map[string]string{
			"sender_account":    "GB29NWBK60161331926819",
			"recipient_account": "DE89370400440532013000",
			"bank_name":         "First National",
		},
		"phone": "+15551234567",
	}
}

func ledgerCount(t *testing.T, c *client) int {
	t.Helper()
	data := decodeData(t, c.get(t, "/api/v1/transactions"))
	return int(data["count"].(float64))
}

// ─── Submission ───────────────────────────────────────────────────────────────

func TestSubmit_BelowThreshold_Committed(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{verdict: false}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	resp := c.post(t, "/api/v1/transactions", shoppingPayload(500))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	data := decodeData(t, resp)
	if data["status"] != "committed" {
		t.Errorf("expected status committed, got %v", data["status"])
	}
	if data["flagged"] != false {
		t.Errorf("expected flagged=false, got %v", data["flagged"])
	}

	tx, ok := data["transaction"].(map[string]any)
	if !ok {
		t.Fatalf("expected transaction object, got %v", data["transaction"])
	}
	masked := tx["masked_identifiers"].(map[string]any)
	if masked["card_number"] != "1111" {
		t.Errorf("expected masked card 1111, got %v", masked["card_number"])
	}

	if got := ledgerCount(t, c); got != 1 {
		t.Errorf("expected ledger length 1, got %d", got)
	}
}

func TestSubmit_FlaggedTransactionReported(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{verdict: true}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	data := decodeData(t, c.post(t, "/api/v1/transactions", shoppingPayload(500)))
	if data["flagged"] != true {
		t.Errorf("expected flagged=true, got %v", data["flagged"])
	}
	if !strings.Contains(data["message"].(string), "suspicious") {
		t.Errorf("expected suspicious message, got %v", data["message"])
	}
}

func TestSubmit_ValidationError(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	payload := shoppingPayload(500)
	delete(payload["fields"].(map[string]string), "cvv")

	resp := c.post(t, "/api/v1/transactions", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp)
	if e["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", e["code"])
	}
	if got := ledgerCount(t, c); got != 0 {
		t.Errorf("expected empty ledger, got %d", got)
	}
}

func TestSubmit_MalformedJSON(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	resp, err := c.http.Post(srv.URL+"/api/v1/transactions", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp)
	if e["code"] != "INVALID_JSON" {
		t.Errorf("expected INVALID_JSON, got %v", e["code"])
	}
}

func TestSubmit_ChallengeDeliveryFailure(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{err: errors.New("gateway down")})
	c := newClient(t, srv)

	resp := c.post(t, "/api/v1/transactions", transferPayload(15000))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp)
	if e["code"] != "CHALLENGE_DELIVERY_FAILED" {
		t.Errorf("expected CHALLENGE_DELIVERY_FAILED, got %v", e["code"])
	}
	if got := ledgerCount(t, c); got != 0 {
		t.Errorf("expected empty ledger, got %d", got)
	}
}

func TestSubmit_ClassifierUnavailable(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{err: errors.New("timeout")}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	resp := c.post(t, "/api/v1/transactions", shoppingPayload(500))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp)
	if e["code"] != "CLASSIFIER_UNAVAILABLE" {
		t.Errorf("expected CLASSIFIER_UNAVAILABLE, got %v", e["code"])
	}
}

// ─── Step-up flow ─────────────────────────────────────────────────────────────

func TestStepUp_FullFlow(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{verdict: false}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	resp := c.post(t, "/api/v1/transactions", transferPayload(15000))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	data := decodeData(t, resp)
	if data["status"] != "step_up_required" {
		t.Errorf("expected step_up_required, got %v", data["status"])
	}
	if got := ledgerCount(t, c); got != 0 {
		t.Fatalf("ledger must stay empty until verification, got %d", got)
	}

	resp = c.post(t, "/api/v1/transactions/verify", map[string]string{"code": "482913"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	data = decodeData(t, resp)
	if data["status"] != "committed" {
		t.Errorf("expected committed, got %v", data["status"])
	}

	if got := ledgerCount(t, c); got != 1 {
		t.Errorf("expected ledger length 1, got %d", got)
	}
}

func TestStepUp_WrongCodeThenCorrect(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	c.post(t, "/api/v1/transactions", transferPayload(15000))

	resp := c.post(t, "/api/v1/transactions/verify", map[string]string{"code": "000000"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp)
	if e["code"] != "CHALLENGE_MISMATCH" {
		t.Errorf("expected CHALLENGE_MISMATCH, got %v", e["code"])
	}
	if got := ledgerCount(t, c); got != 0 {
		t.Fatalf("ledger must stay empty after a mismatch, got %d", got)
	}

	resp = c.post(t, "/api/v1/transactions/verify", map[string]string{"code": "482913"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 after retry with correct code, got %d", resp.StatusCode)
	}
}

func TestVerify_NoActiveChallenge(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	resp := c.post(t, "/api/v1/transactions/verify", map[string]string{"code": "482913"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	e := decodeError(t, resp)
	if e["code"] != "NO_ACTIVE_CHALLENGE" {
		t.Errorf("expected NO_ACTIVE_CHALLENGE, got %v", e["code"])
	}
}

// ─── Session isolation and reset ──────────────────────────────────────────────

func TestSessions_AreIsolated(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	alice := newClient(t, srv)
	bob := newClient(t, srv)

	alice.post(t, "/api/v1/transactions", shoppingPayload(500))
	alice.post(t, "/api/v1/transactions", transferPayload(15000))

	if got := ledgerCount(t, bob); got != 0 {
		t.Errorf("bob must not see alice's ledger, got %d", got)
	}

	// Bob has no challenge even though alice does.
	resp := bob.post(t, "/api/v1/transactions/verify", map[string]string{"code": "482913"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for bob, got %d", resp.StatusCode)
	}

	// Alice's challenge is still resolvable.
	resp = alice.post(t, "/api/v1/transactions/verify", map[string]string{"code": "482913"})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 for alice, got %d", resp.StatusCode)
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	c.post(t, "/api/v1/transactions", shoppingPayload(500))
	c.post(t, "/api/v1/transactions", transferPayload(15000))

	resp := c.post(t, "/api/v1/session/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if got := ledgerCount(t, c); got != 0 {
		t.Errorf("expected empty ledger after reset, got %d", got)
	}
	resp = c.post(t, "/api/v1/transactions/verify", map[string]string{"code": "482913"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected NO_ACTIVE_CHALLENGE after reset, got %d", resp.StatusCode)
	}
}

// ─── Metrics and export ───────────────────────────────────────────────────────

func TestMetrics_OverSessionLedger(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{verdict: true}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	c.post(t, "/api/v1/transactions", shoppingPayload(500))
	c.post(t, "/api/v1/transactions", transferPayload(900))

	data := decodeData(t, c.get(t, "/api/v1/metrics"))
	if data["total_transactions"] != float64(2) {
		t.Errorf("expected 2 transactions, got %v", data["total_transactions"])
	}
	if data["fraud_transactions"] != float64(2) {
		t.Errorf("expected 2 fraud transactions, got %v", data["fraud_transactions"])
	}
	if data["fraud_percentage"] != float64(100) {
		t.Errorf("expected 100%%, got %v", data["fraud_percentage"])
	}
}

func TestMetrics_EmptyLedger(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	data := decodeData(t, c.get(t, "/api/v1/metrics"))
	if data["total_transactions"] != float64(0) {
		t.Errorf("expected 0 transactions, got %v", data["total_transactions"])
	}
	if data["fraud_percentage"] != float64(0) {
		t.Errorf("expected 0%%, got %v", data["fraud_percentage"])
	}
}

func TestExport_CSVAttachment(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{verdict: true}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	c.post(t, "/api/v1/transactions", shoppingPayload(500))

	resp := c.get(t, "/api/v1/export")
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv content type, got %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "transactions.csv") {
		t.Errorf("expected transactions.csv filename, got %q", cd)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "Type,Amount,Timestamp,Location,Fraud Flag" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Online Shopping,500,") || !strings.HasSuffix(lines[1], ",Yes") {
		t.Errorf("unexpected row: %q", lines[1])
	}
}

// ─── Health ───────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{}, &stubChallenger{code: "482913"})
	c := newClient(t, srv)

	resp := c.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data := decodeData(t, resp)
	if data["status"] != "ok" {
		t.Errorf("expected status ok, got %v", data["status"])
	}
}
