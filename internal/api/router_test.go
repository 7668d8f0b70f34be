package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/core/service"
	"github.com/whisperchain/whisper-api/internal/core/token"
	"github.com/whisperchain/whisper-api/internal/infrastructure/db/memory"
	"github.com/whisperchain/whisper-api/internal/infrastructure/queue"
)

const (
	testJWTSecret = "jwt-test-secret"
	testPublicKey = "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="
)

type testServer struct {
	e  *echo.Echo
	mu sync.Mutex
	t  time.Time
}

func (s *testServer) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

func (s *testServer) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = s.t.Add(d)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	srv := &testServer{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	store := memory.NewStore()
	store.SetClock(srv.now)

	ctx, cancel := context.WithCancel(context.Background())
	exec := queue.NewDispatcher(2, zerolog.Nop())
	exec.Start(ctx)
	t.Cleanup(func() {
		cancel()
		exec.Wait()
	})

	issuer := token.NewIssuer("token-test-secret")
	auth := service.NewAuthService(store.Users(), testJWTSecret, time.Hour)
	users := service.NewUserService(store.Users(), store.Audit(), zerolog.Nop())
	messages := service.NewMessageService(store.Messages(), store.Audit(), zerolog.Nop())
	ledger := service.NewModerationService(store.Moderation(), store.Messages(), exec,
		service.LedgerConfig{MaxAttempts: 3, Clock: srv.now}, zerolog.Nop())
	gate := service.NewSendService(users, store.Users(), issuer, store.Moderation(), store.Messages(), store.Idempotency(), zerolog.Nop())

	if err := auth.EnsureAdmin(ctx, "root", "rootpassword"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	srv.e = NewRouter(Deps{
		Log:        zerolog.Nop(),
		JWTSecret:  testJWTSecret,
		Now:        srv.now,
		Registry:   prometheus.NewRegistry(),
		Auth:       auth,
		Users:      users,
		Issuer:     issuer,
		Gate:       gate,
		Messages:   messages,
		Moderation: ledger,
		Audit:      service.NewAuditService(store.Audit()),
	})
	return srv
}

func (s *testServer) do(t *testing.T, method, path, jwt string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return out
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, code int) map[string]any {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	if rec.Body.Len() == 0 {
		return nil
	}
	return decode(t, rec)
}

// register creates an account and returns its id.
func (s *testServer) register(t *testing.T, username, role string) string {
	t.Helper()
	body := map[string]string{"username": username, "password": "password123", "role": role}
	if role == "receiver" {
		body["public_key"] = testPublicKey
	}
	resp := expect(t, s.do(t, http.MethodPost, "/auth/register", "", body), http.StatusCreated)
	user := resp["user"].(map[string]any)
	if user["status"] != "pending" {
		t.Fatalf("new accounts must be pending, got %v", user["status"])
	}
	return user["id"].(string)
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := expect(t, s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username, "password": password,
	}), http.StatusOK)
	return resp["token"].(string)
}

func (s *testServer) send(t *testing.T, jwt, recipientID string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/messages", jwt, map[string]any{
		"recipient_id": recipientID,
		"ciphertext":   []byte("sealed-box"),
	})
}

func TestRouter_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	senderID := s.register(t, "alice", "sender")
	receiverID := s.register(t, "bob", "receiver")
	modID := s.register(t, "carol", "moderator")

	alice := s.login(t, "alice", "password123")

	// pending accounts can log in but cannot act
	resp := expect(t, s.send(t, alice, receiverID), http.StatusForbidden)
	if resp["error"] != "account is not approved" {
		t.Fatalf("unexpected error: %v", resp)
	}
	expect(t, s.do(t, http.MethodGet, "/tokens/current", alice, nil), http.StatusForbidden)

	root := s.login(t, "root", "rootpassword")
	pending := s.do(t, http.MethodGet, "/admin/users/pending", root, nil)
	if pending.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", pending.Code)
	}
	var users []map[string]any
	_ = json.Unmarshal(pending.Body.Bytes(), &users)
	if len(users) != 3 {
		t.Fatalf("expected 3 pending users, got %d", len(users))
	}
	for _, id := range []string{senderID, receiverID, modID} {
		expect(t, s.do(t, http.MethodPost, "/admin/users/"+id+"/approve", root, nil), http.StatusOK)
	}

	bob := s.login(t, "bob", "password123")
	carol := s.login(t, "carol", "password123")

	// sender side
	cur := expect(t, s.do(t, http.MethodGet, "/tokens/current", alice, nil), http.StatusOK)
	sent := expect(t, s.send(t, alice, receiverID), http.StatusCreated)
	tok := sent["token"].(string)
	if tok != cur["token"] {
		t.Fatalf("send must use the current-window token")
	}

	// receiver side
	inbox := expect(t, s.do(t, http.MethodGet, "/messages/inbox", bob, nil), http.StatusOK)
	items := inbox["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["sender_token"] != tok {
		t.Fatalf("unexpected inbox: %v", inbox)
	}
	msgID := sent["message_id"].(string)
	expect(t, s.do(t, http.MethodPost, "/messages/"+msgID+"/flag", bob, map[string]string{"reason": "abuse"}), http.StatusOK)

	// moderation
	flagged := expect(t, s.do(t, http.MethodGet, "/moderation/flagged", carol, nil), http.StatusOK)
	if flagged["total"].(float64) != 1 {
		t.Fatalf("expected one flagged message, got %v", flagged["total"])
	}

	st := expect(t, s.do(t, http.MethodPost, "/moderation/tokens/"+tok+"/freeze", carol, nil), http.StatusOK)
	if st["status"] != "frozen" {
		t.Fatalf("expected frozen, got %v", st["status"])
	}
	rec := s.send(t, alice, receiverID)
	blocked := expect(t, rec, http.StatusForbidden)
	if blocked["kind"] != "frozen" || rec.Header().Get("Retry-After") != "" {
		t.Fatalf("unexpected frozen rejection: %v", blocked)
	}

	expect(t, s.do(t, http.MethodPost, "/moderation/tokens/"+tok+"/unfreeze", carol, nil), http.StatusOK)
	st = expect(t, s.do(t, http.MethodPost, "/moderation/tokens/"+tok+"/ban", carol, map[string]string{"duration": "5m"}), http.StatusOK)
	if st["status"] != "temp_banned" || st["remaining_seconds"].(float64) != 300 {
		t.Fatalf("unexpected ban status: %v", st)
	}
	rec = s.send(t, alice, receiverID)
	blocked = expect(t, rec, http.StatusForbidden)
	if blocked["kind"] != "temp_banned" || rec.Header().Get("Retry-After") != "300" {
		t.Fatalf("unexpected ban rejection: %v (Retry-After %q)", blocked, rec.Header().Get("Retry-After"))
	}

	// the ban follows the sender into the next window until it expires
	s.advance(3 * time.Minute)
	expect(t, s.send(t, alice, receiverID), http.StatusForbidden)
	s.advance(3 * time.Minute)
	expect(t, s.send(t, alice, receiverID), http.StatusCreated)

	audit := expect(t, s.do(t, http.MethodGet, "/moderation/audit?token="+tok, carol, nil), http.StatusOK)
	if audit["total"].(float64) != 4 {
		t.Fatalf("expected flag, freeze, unfreeze and ban entries, got %v", audit["total"])
	}
	report := expect(t, s.do(t, http.MethodGet, "/admin/audit?action_type=user_approved", root, nil), http.StatusOK)
	if report["total"].(float64) != 3 {
		t.Fatalf("expected three approvals, got %v", report["total"])
	}
}

func TestRouter_RoleEnforcement(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "sender")
	alice := s.login(t, "alice", "password123")

	expect(t, s.do(t, http.MethodGet, "/moderation/flagged", alice, nil), http.StatusForbidden)
	expect(t, s.do(t, http.MethodGet, "/admin/users/pending", alice, nil), http.StatusForbidden)
	expect(t, s.do(t, http.MethodGet, "/messages/inbox", alice, nil), http.StatusForbidden)
	expect(t, s.do(t, http.MethodGet, "/moderation/flagged", "", nil), http.StatusUnauthorized)
}

func TestRouter_TokenHintMismatch(t *testing.T) {
	s := newTestServer(t)
	senderID := s.register(t, "alice", "sender")
	receiverID := s.register(t, "bob", "receiver")
	root := s.login(t, "root", "rootpassword")
	for _, id := range []string{senderID, receiverID} {
		expect(t, s.do(t, http.MethodPost, "/admin/users/"+id+"/approve", root, nil), http.StatusOK)
	}
	alice := s.login(t, "alice", "password123")

	stale := expect(t, s.do(t, http.MethodGet, "/tokens/current", alice, nil), http.StatusOK)
	s.advance(2 * time.Minute)

	resp := expect(t, s.do(t, http.MethodPost, "/messages", alice, map[string]any{
		"recipient_id": receiverID,
		"ciphertext":   []byte("sealed-box"),
		"token_hint":   stale["token"],
	}), http.StatusConflict)
	if resp["window_id"].(float64) != stale["window_id"].(float64)+1 {
		t.Fatalf("expected current window id, got %v", resp["window_id"])
	}
}

func TestRouter_IdempotentSend(t *testing.T) {
	s := newTestServer(t)
	senderID := s.register(t, "alice", "sender")
	receiverID := s.register(t, "bob", "receiver")
	root := s.login(t, "root", "rootpassword")
	for _, id := range []string{senderID, receiverID} {
		expect(t, s.do(t, http.MethodPost, "/admin/users/"+id+"/approve", root, nil), http.StatusOK)
	}
	alice := s.login(t, "alice", "password123")

	body := map[string]any{"recipient_id": receiverID, "ciphertext": []byte("sealed-box")}
	first := expect(t, s.do(t, http.MethodPost, "/messages", alice, body, "Idempotency-Key", "k-1"), http.StatusCreated)
	second := expect(t, s.do(t, http.MethodPost, "/messages", alice, body, "Idempotency-Key", "k-1"), http.StatusOK)
	if first["message_id"] != second["message_id"] || second["replayed"] != true {
		t.Fatalf("replay must return the original message: %v %v", first, second)
	}
}

func TestRouter_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	resp := expect(t, s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "al", "password": "password123", "role": "sender",
	}), http.StatusBadRequest)
	if resp["error"] != "username must be at least 3" {
		t.Fatalf("unexpected error: %v", resp["error"])
	}

	expect(t, s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "mallory", "password": "password123", "role": "admin",
	}), http.StatusBadRequest)

	// receivers need a public key
	expect(t, s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "bob", "password": "password123", "role": "receiver",
	}), http.StatusBadRequest)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)
	expect(t, s.do(t, http.MethodGet, "/health", "", nil), http.StatusOK)
	expect(t, s.do(t, http.MethodGet, "/health/ready", "", nil), http.StatusOK)
	if rec := s.do(t, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}
