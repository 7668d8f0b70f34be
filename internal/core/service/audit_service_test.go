package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

func TestAuditService_OrderingAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.senderToken()
	other := f.issuer.TokenFor(f.receiver.ID, domain.WindowAt(t0))

	_, _ = f.ledger.Warn(ctx, tok, "mod1")
	f.advance(time.Second)
	_, _ = f.ledger.TempBan(ctx, tok, "mod2", 5*time.Minute)
	f.advance(time.Second)
	_, _ = f.ledger.Freeze(ctx, other, "mod1")

	newest, err := f.audit.ListAuditLog(ctx, ports.AuditFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if newest.Total != 3 || newest.Items[0].ActionType != domain.ActionFreeze {
		t.Fatalf("expected newest-first by default")
	}

	oldest, _ := f.audit.ListAuditLog(ctx, ports.AuditFilter{OldestFirst: true})
	if oldest.Items[0].ActionType != domain.ActionWarn {
		t.Fatalf("expected chronological order")
	}

	byMod, _ := f.audit.ListAuditLog(ctx, ports.AuditFilter{ModeratorID: "mod1"})
	if byMod.Total != 2 {
		t.Fatalf("expected 2 entries by mod1, got %d", byMod.Total)
	}

	byToken, _ := f.audit.ListAuditLog(ctx, ports.AuditFilter{Token: tok, ActionType: domain.ActionBanTemp5Min})
	if byToken.Total != 1 || byToken.Items[0].ModeratorID != "mod2" {
		t.Fatalf("expected the single ban entry")
	}
}

func TestAuditService_InvalidFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.audit.ListAuditLog(ctx, ports.AuditFilter{ActionType: "delete"}); !errors.Is(err, domain.ErrInvalidActionType) {
		t.Fatalf("expected ErrInvalidActionType, got %v", err)
	}
	if _, err := f.audit.ListAuditLog(ctx, ports.AuditFilter{Token: "short"}); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
