package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"societyos.org/internal/auth"
	"societyos.org/internal/billing"
	"societyos.org/internal/docs"
	"societyos.org/internal/society"
	"societyos.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	users := auth.NewMemoryStore()
	authSvc, err := auth.NewService(users, auth.WithSecret("test-secret"))
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	societies := society.NewService(society.NewMemoryStore(), authSvc, users)
	events := stream.New()
	billingSvc := billing.NewService(billing.NewMemoryStore(), users, societies, billing.WithEvents(events))
	docsSvc := docs.NewService(docs.NewMemoryStore(), docs.NewMemoryBlobStore())

	api := New(ReadyProbe{}, "test", authSvc, societies, billingSvc, docsSvc, events)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// login returns the access token and the session cookie issued for the
// credentials.
func (c *apiClient) login(phone, password string) (string, *http.Cookie) {
	c.t.Helper()
	resp := c.post("/auth/login", map[string]any{
		"phone":    phone,
		"password": password,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.AccessToken == "" {
		c.t.Fatal("empty access token issued")
	}
	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == refreshCookie {
			session = ck
		}
	}
	if session == nil || session.Value == "" {
		c.t.Fatal("login did not set the session cookie")
	}
	return payload.AccessToken, session
}

func asBearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
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

func TestSocietyBillingFlow(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/society/create-society", map[string]any{
		"name":     "Green Meadows",
		"address":  "12 Lake Road",
		"city":     "Pune",
		"state":    "MH",
		"pinCode":  "411001",
		"manager":  "Asha",
		"phone":    "9000000001",
		"email":    "asha@example.com",
		"password": "s3cret-pass",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create-society status = %d", resp.StatusCode)
	}
	created := decode[createSocietyResponse](t, resp)
	if created.Society.ID == "" || created.Manager.ID == "" {
		t.Fatalf("incomplete provisioning response: %+v", created)
	}
	if created.Manager.SocietyID != created.Society.ID {
		t.Fatal("manager not linked to the new society")
	}

	adminToken, _ := c.login("9000000001", "s3cret-pass")

	memberIDs := make([]string, 0, 3)
	for i := 1; i <= 3; i++ {
		resp := c.post("/society/add-member", map[string]any{
			"societyId": created.Society.ID,
			"name":      fmt.Sprintf("Member %d", i),
			"phone":     fmt.Sprintf("900000010%d", i),
			"email":     fmt.Sprintf("member%d@example.com", i),
			"password":  "member-pass",
		}, asBearer(adminToken))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add-member %d status = %d", i, resp.StatusCode)
		}
		member := decode[auth.User](t, resp)
		if member.SocietyID != created.Society.ID {
			t.Fatalf("member %d not linked to society", i)
		}
		memberIDs = append(memberIDs, member.ID)
	}

	resp = c.post("/payment/create", map[string]any{
		"title":       "Maintenance August",
		"issueDate":   "2025-08-01",
		"dueDate":     "2025-08-15",
		"amount":      500,
		"description": "Monthly maintenance",
		"createdBy":   created.Manager.ID,
	}, asBearer(adminToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("payment/create status = %d", resp.StatusCode)
	}
	payment := decode[createPaymentResponse](t, resp)
	if payment.Fanout != "complete" {
		t.Fatalf("fanout = %q, want complete", payment.Fanout)
	}
	if payment.Payment.Amount != 500 {
		t.Fatalf("amount = %d, want 500", payment.Payment.Amount)
	}

	resp = c.get("/payment/manager/"+created.Manager.ID, nil, asBearer(adminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment/manager status = %d", resp.StatusCode)
	}
	managerView := decode[struct {
		Payments []billing.Charge `json:"payments"`
	}](t, resp)
	if len(managerView.Payments) != 1 {
		t.Fatalf("manager payments = %d, want 1", len(managerView.Payments))
	}

	memberToken, _ := c.login("9000000101", "member-pass")
	resp = c.get("/payment/member/"+memberIDs[0], nil, asBearer(memberToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment/member status = %d", resp.StatusCode)
	}
	memberView := decode[struct {
		Payments []billing.MemberSettlement `json:"payments"`
	}](t, resp)
	if len(memberView.Payments) != 1 {
		t.Fatalf("member settlements = %d, want 1", len(memberView.Payments))
	}
	got := memberView.Payments[0]
	if got.Amount != 500 || got.Title != "Maintenance August" || got.Status != billing.StatusPending {
		t.Fatalf("unexpected settlement view: %+v", got)
	}
	if got.ChargeID != payment.Payment.ID {
		t.Fatal("settlement not linked to the charge")
	}

	// Settle and confirm the manager reconciliation view picks it up.
	resp = c.post("/payment/mark-paid", map[string]any{
		"id":          got.ObligationID,
		"amountPaid":  500,
		"externalRef": "upi-789",
	}, asBearer(memberToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark-paid status = %d", resp.StatusCode)
	}

	resp = c.get("/payment/paid/"+payment.Payment.ID, nil, asBearer(adminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment/paid status = %d", resp.StatusCode)
	}
	paidView := decode[struct {
		Payments []billing.Obligation `json:"payments"`
	}](t, resp)
	if len(paidView.Payments) != 1 || paidView.Payments[0].MemberID != memberIDs[0] {
		t.Fatalf("unexpected paid view: %+v", paidView.Payments)
	}
}

func TestRegisterValidationAndDuplicates(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/auth/register", map[string]any{
		"name":  "No Password",
		"phone": "9000000009",
		"email": "nopass@example.com",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing field status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	body := map[string]any{
		"name":     "Ravi",
		"phone":    "9000000010",
		"email":    "ravi@example.com",
		"password": "ravi-pass",
	}
	resp = c.post("/auth/register", body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	user := decode[auth.User](t, resp)
	if user.Role != auth.RoleMember {
		t.Fatalf("default role = %q, want member", user.Role)
	}

	resp = c.post("/auth/register", body, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginErrors(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/auth/register", map[string]any{
		"name":     "Mina",
		"phone":    "9000000020",
		"email":    "mina@example.com",
		"password": "mina-pass",
	}, nil)
	resp.Body.Close()

	resp = c.post("/auth/login", map[string]any{
		"phone":    "9999999999",
		"password": "whatever",
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown phone status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/auth/login", map[string]any{
		"phone":    "9000000020",
		"password": "wrong",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRefreshTokenLifecycle(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/auth/register", map[string]any{
		"name":     "Kiran",
		"phone":    "9000000030",
		"email":    "kiran@example.com",
		"password": "kiran-pass",
	}, nil)
	resp.Body.Close()

	_, session := c.login("9000000030", "kiran-pass")

	// No cookie at all.
	req, _ := http.NewRequest(http.MethodGet, c.baseURL+"/auth/refresh-token", nil)
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no-cookie status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	// Valid cookie mints a fresh access token.
	req, _ = http.NewRequest(http.MethodGet, c.baseURL+"/auth/refresh-token", nil)
	req.AddCookie(session)
	resp, err = c.client.Do(req)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	refreshed := decode[refreshResponse](t, resp)
	if refreshed.AccessToken == "" {
		t.Fatal("expected fresh access token")
	}

	// Garbage cookie is rejected with 403.
	req, _ = http.NewRequest(http.MethodGet, c.baseURL+"/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: "not-a-token"})
	resp, err = c.client.Do(req)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("garbage cookie status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// A second login supersedes the first session's refresh token.
	_, second := c.login("9000000030", "kiran-pass")
	req, _ = http.NewRequest(http.MethodGet, c.baseURL+"/auth/refresh-token", nil)
	req.AddCookie(session)
	resp, err = c.client.Do(req)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stale session status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// Logout clears the slot; the cookie no longer refreshes.
	req, _ = http.NewRequest(http.MethodPost, c.baseURL+"/auth/logout", nil)
	req.AddCookie(second)
	resp, err = c.client.Do(req)
	if err != nil {
		t.Fatalf("logout request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}
	foundCleared := false
	for _, ck := range resp.Cookies() {
		if ck.Name == refreshCookie && ck.MaxAge < 0 {
			foundCleared = true
		}
	}
	resp.Body.Close()
	if !foundCleared {
		t.Fatal("logout did not clear the session cookie")
	}

	req, _ = http.NewRequest(http.MethodGet, c.baseURL+"/auth/refresh-token", nil)
	req.AddCookie(second)
	resp, err = c.client.Do(req)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("post-logout status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutWithoutCookie(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/auth/logout", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginCookieAttributes(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/auth/register", map[string]any{
		"name":     "Dev",
		"phone":    "9000000040",
		"email":    "dev@example.com",
		"password": "dev-pass",
	}, nil)
	resp.Body.Close()

	_, session := c.login("9000000040", "dev-pass")
	if !session.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if session.SameSite != http.SameSiteStrictMode {
		t.Fatalf("SameSite = %v, want Strict", session.SameSite)
	}
	if session.MaxAge != int(7*24*60*60) {
		t.Fatalf("MaxAge = %d, want 7 days", session.MaxAge)
	}
}

func TestManagerPaymentsNotFound(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/auth/register", map[string]any{
		"name":     "Lone Admin",
		"phone":    "9000000050",
		"email":    "lone@example.com",
		"password": "lone-pass",
		"role":     "admin",
	}, nil)
	resp.Body.Close()
	token, _ := c.login("9000000050", "lone-pass")

	resp = c.get("/payment/manager/no-such-manager", nil, asBearer(token))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
