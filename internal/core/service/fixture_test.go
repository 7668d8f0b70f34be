package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
	"github.com/whisperchain/whisper-api/internal/core/token"
	"github.com/whisperchain/whisper-api/internal/infrastructure/db/memory"
	"github.com/whisperchain/whisper-api/internal/infrastructure/queue"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture wires the real services over the in-memory store with a
// controllable clock.
type fixture struct {
	store  *memory.Store
	issuer *token.Issuer
	ledger *ModerationService
	gate   *SendService
	users  *UserService
	audit  *AuditService

	mu  sync.Mutex
	now time.Time

	sender   *domain.User
	receiver *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, nil)
}

// newFixtureWithRepo lets a test wrap the moderation repository.
func newFixtureWithRepo(t *testing.T, wrap func(ports.ModerationRepository) ports.ModerationRepository) *fixture {
	t.Helper()

	f := &fixture{store: memory.NewStore(), issuer: token.NewIssuer("test-secret"), now: t0}
	f.store.SetClock(f.clock)

	ctx, cancel := context.WithCancel(context.Background())
	exec := queue.NewDispatcher(4, zerolog.Nop())
	exec.Start(ctx)
	t.Cleanup(func() {
		cancel()
		exec.Wait()
	})

	var modRepo ports.ModerationRepository = f.store.Moderation()
	if wrap != nil {
		modRepo = wrap(modRepo)
	}

	f.ledger = NewModerationService(modRepo, f.store.Messages(), exec, LedgerConfig{MaxAttempts: 3, Clock: f.clock}, zerolog.Nop())
	f.users = NewUserService(f.store.Users(), f.store.Audit(), zerolog.Nop())
	f.gate = NewSendService(f.users, f.store.Users(), f.issuer, modRepo, f.store.Messages(), f.store.Idempotency(), zerolog.Nop())
	f.audit = NewAuditService(f.store.Audit())

	f.sender = f.addUser(t, "sender", domain.RoleSender, domain.ApprovalApproved)
	f.receiver = f.addUser(t, "receiver", domain.RoleReceiver, domain.ApprovalApproved)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) addUser(t *testing.T, name, role string, state domain.ApprovalState) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.store.Users().Create(ctx, &domain.User{Username: name, Role: role, Approval: domain.ApprovalPending, CreatedAt: t0})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if state != domain.ApprovalPending {
		if u, err = f.store.Users().SetApproval(ctx, u.ID, state, t0); err != nil {
			t.Fatalf("set approval: %v", err)
		}
	}
	return u
}

// senderToken is the sender's token for the window containing the fixture clock.
func (f *fixture) senderToken() domain.Token {
	return f.issuer.TokenFor(f.sender.ID, domain.WindowAt(f.clock()))
}

func (f *fixture) send(in ports.SendInput) (*ports.SendResult, error) {
	if in.SenderID == "" {
		in.SenderID = f.sender.ID
	}
	if in.RecipientID == "" {
		in.RecipientID = f.receiver.ID
	}
	if in.Ciphertext == nil {
		in.Ciphertext = []byte("sealed")
	}
	in.Now = f.clock()
	return f.gate.TrySend(context.Background(), in)
}

func (f *fixture) auditFor(t *testing.T, tok domain.Token) []*domain.AuditLogEntry {
	t.Helper()
	page, err := f.audit.ListAuditLog(context.Background(), ports.AuditFilter{Token: tok, OldestFirst: true, Limit: 100})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return page.Items
}
