package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"aguideptbr.org/internal/auth"
	"aguideptbr.org/internal/content"
	"aguideptbr.org/internal/ownership"
)

// --- in-memory stores ---

type memUsers struct {
	users map[uuid.UUID]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*auth.User)}
}

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) Find(_ context.Context, id uuid.UUID) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Email == email && !u.Deleted() {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) SetChannel(_ context.Context, id uuid.UUID, channelID, channelTitle string) error {
	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.ChannelID = channelID
	u.ChannelTitle = channelTitle
	return nil
}

func (m *memUsers) SoftDelete(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	now := time.Now().UTC()
	u.DeletedAt = &now
	return nil
}

func (m *memUsers) Restore(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.DeletedAt = nil
	return nil
}

type memContents struct {
	records map[uuid.UUID]*content.Record
}

func newMemContents() *memContents {
	return &memContents{records: make(map[uuid.UUID]*content.Record)}
}

func (m *memContents) Create(_ context.Context, r *content.Record) error {
	m.records[r.ID] = r
	return nil
}

func (m *memContents) Find(_ context.Context, id uuid.UUID) (*content.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return r, nil
}

func (m *memContents) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*content.Record, error) {
	var out []*content.Record
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memContents) SetValidationHash(_ context.Context, id uuid.UUID, hash string) error {
	r, ok := m.records[id]
	if !ok {
		return content.ErrNotFound
	}
	r.ValidationHash = hash
	return nil
}

type memClaims struct {
	rows map[[2]uuid.UUID]*ownership.Claim
}

func newMemClaims() *memClaims {
	return &memClaims{rows: make(map[[2]uuid.UUID]*ownership.Claim)}
}

func (m *memClaims) Get(_ context.Context, userID, contentID uuid.UUID) (*ownership.Claim, error) {
	row, ok := m.rows[[2]uuid.UUID{userID, contentID}]
	if !ok {
		return nil, ownership.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memClaims) Upsert(_ context.Context, claim *ownership.Claim) error {
	now := time.Now().UTC()
	k := [2]uuid.UUID{claim.UserID, claim.ContentID}
	if row, ok := m.rows[k]; ok {
		claim.ID = row.ID
		claim.CreatedAt = row.CreatedAt
	} else {
		claim.CreatedAt = now
	}
	claim.UpdatedAt = now
	cp := *claim
	m.rows[k] = &cp
	return nil
}

func (m *memClaims) Cancel(_ context.Context, userID, contentID uuid.UUID, at time.Time) (*ownership.Claim, error) {
	row, ok := m.rows[[2]uuid.UUID{userID, contentID}]
	if !ok {
		return nil, ownership.ErrNotFound
	}
	row.Status = ownership.StatusRejected
	row.RejectionReason = ownership.ReasonUserCancelled
	row.CancelledByUser = true
	row.ValidationHash = ""
	row.VerifiedAt = nil
	row.LastAttemptAt = at
	row.UpdatedAt = time.Now().UTC()
	cp := *row
	return &cp, nil
}

func (m *memClaims) ListVerifiedByUser(_ context.Context, userID uuid.UUID) ([]*ownership.Claim, error) {
	var out []*ownership.Claim
	for _, row := range m.rows {
		if row.UserID == userID && row.Status == ownership.StatusVerified {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- harness ---

type testEnv struct {
	handler  http.Handler
	users    *memUsers
	contents *memContents
	user     *auth.User
	record   *content.Record
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	signer, err := auth.NewSigner(string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	users := newMemUsers()
	contents := newMemContents()
	claims := newMemClaims()

	issuer := auth.NewIssuer(signer, "aguide-test")
	validator := auth.NewValidator(signer, "aguide-test", users)
	svc := auth.NewService(users, issuer)
	verifier, err := ownership.NewVerifier(users, contents, claims, "test-secret")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	user := &auth.User{
		ID:        uuid.New(),
		Name:      "Ana",
		Email:     "ana@example.com",
		Role:      auth.RoleFree,
		ChannelID: "UC123",
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	record := &content.Record{ID: uuid.New(), Title: "Go tips", ChannelID: "UC123"}
	if err := contents.Create(context.Background(), record); err != nil {
		t.Fatalf("Create record: %v", err)
	}

	token, _, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc, validator, verifier)
	return &testEnv{
		handler:  api.Handler(),
		users:    users,
		contents: contents,
		user:     user,
		record:   record,
		token:    token,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

// --- tests ---

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name  string
		token string
		code  string
	}{
		{"missing token", "", "token_missing"},
		{"garbage token", "not.even.close!", "token_malformed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/v1/ownership/content", tc.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("WWW-Authenticate"); got == "" {
				t.Fatal("expected WWW-Authenticate header")
			}
			body := decodeBody(t, rec)
			if body["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body)
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/v1/ownership/content", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token must pass the gate, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	env := newTestEnv(t)

	reg := map[string]string{
		"name":     "Bruno",
		"email":    "bruno@example.com",
		"password": "s3cret",
	}
	rec := env.do(t, http.MethodPost, "/v1/auth/register", "", reg)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" || session.User.Role != "FREE" {
		t.Fatalf("unexpected session: %s", rec.Body.String())
	}

	// The issued token opens protected routes immediately.
	rec = env.do(t, http.MethodGet, "/v1/ownership/content", session.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("registration token rejected: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/register", "", reg)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate email, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "bruno@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "invalid email or password" {
		t.Fatalf("unexpected error body: %v", body)
	}

	rec = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "bruno@example.com",
		"password": "s3cret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 login, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestOwnershipValidateFlow(t *testing.T) {
	env := newTestEnv(t)
	reqBody := map[string]string{"content_id": env.record.ID.String()}

	rec := env.do(t, http.MethodPost, "/v1/ownership/validate", env.token, reqBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "VERIFIED" {
		t.Fatalf("expected VERIFIED, got %v", body)
	}
	hash, _ := body["hash"].(string)
	if len(hash) != 64 {
		t.Fatalf("expected 64-char hash, got %q", hash)
	}

	rec = env.do(t, http.MethodGet, "/v1/ownership/status?content_id="+env.record.ID.String(), env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 status, got %d: %s", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	if body["status"] != "VERIFIED" {
		t.Fatalf("expected VERIFIED status, got %v", body)
	}

	rec = env.do(t, http.MethodPost, "/v1/ownership/cancel", env.token, reqBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 cancel, got %d: %s", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	if body["status"] != "REJECTED" || body["reason"] != "USER_CANCELLED" {
		t.Fatalf("unexpected cancel body: %v", body)
	}
	if body["cancelled_by_user"] != true {
		t.Fatalf("expected cancelled_by_user, got %v", body)
	}

	rec = env.do(t, http.MethodGet, "/v1/ownership/content", env.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 content, got %d", rec.Code)
	}
	var contentBody struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &contentBody); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if len(contentBody.Content) != 0 {
		t.Fatalf("cancelled claims must not list, got %s", rec.Body.String())
	}
}

func TestOwnershipRejection(t *testing.T) {
	env := newTestEnv(t)
	other := &content.Record{ID: uuid.New(), Title: "Someone else's", ChannelID: "UC999"}
	if err := env.contents.Create(context.Background(), other); err != nil {
		t.Fatalf("Create record: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/ownership/validate", env.token,
		map[string]string{"content_id": other.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("business rejection is still a 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "REJECTED" || body["reason"] != "CHANNEL_MISMATCH" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["hash"]; ok {
		t.Fatalf("rejected claims carry no hash: %v", body)
	}
}

func TestOwnershipErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/ownership/validate", env.token,
		map[string]string{"content_id": "not-a-uuid"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad uuid, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/ownership/validate", env.token,
		map[string]string{"content_id": uuid.NewString()})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown content, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "content not found" {
		t.Fatalf("unexpected body: %v", body)
	}

	rec = env.do(t, http.MethodGet, "/v1/ownership/status?content_id="+uuid.NewString(), env.token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing claim, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/ownership/validate", env.token, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", rec.Header().Get("Allow"))
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/nope", env.token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
