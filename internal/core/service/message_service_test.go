package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

func TestMessageService_InboxNewestFirst(t *testing.T) {
	f := newFixture(t)
	svc := NewMessageService(f.store.Messages(), f.store.Audit(), zerolog.Nop())

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := f.send(ports.SendInput{})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		ids = append(ids, res.MessageID)
		f.advance(time.Second)
	}

	page, err := svc.Inbox(context.Background(), f.receiver.ID, 1, 2)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}
	if page.Items[0].ID != ids[2] {
		t.Fatalf("expected newest message first")
	}

	other, _ := svc.Inbox(context.Background(), f.sender.ID, 1, 10)
	if other.Total != 0 {
		t.Fatalf("inbox must be scoped to the recipient")
	}
}

func TestMessageService_PageLimitCapped(t *testing.T) {
	f := newFixture(t)
	svc := NewMessageService(f.store.Messages(), f.store.Audit(), zerolog.Nop())

	page, err := svc.Inbox(context.Background(), f.receiver.ID, 0, 1000)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if page.Page != 1 || page.Limit != 100 {
		t.Fatalf("expected page 1 limit 100, got %d %d", page.Page, page.Limit)
	}
}

func TestMessageService_MarkRead(t *testing.T) {
	f := newFixture(t)
	svc := NewMessageService(f.store.Messages(), f.store.Audit(), zerolog.Nop())
	res, _ := f.send(ports.SendInput{})

	if err := svc.MarkRead(context.Background(), res.MessageID, f.sender.ID); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("only the recipient may mark read, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), res.MessageID, f.receiver.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	msg, _ := f.store.Messages().FindByID(context.Background(), res.MessageID)
	if !msg.Read {
		t.Fatalf("expected message read")
	}
}

func TestMessageService_FlagAudited(t *testing.T) {
	f := newFixture(t)
	svc := NewMessageService(f.store.Messages(), f.store.Audit(), zerolog.Nop())
	ctx := context.Background()
	res, _ := f.send(ports.SendInput{})

	msg, err := svc.Flag(ctx, res.MessageID, f.receiver.ID, strings.Repeat("x", 600))
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if !msg.Flagged || len(msg.FlagReason) != 500 {
		t.Fatalf("unexpected flagged message: flagged=%v reason=%d", msg.Flagged, len(msg.FlagReason))
	}

	entries := f.auditFor(t, res.Token)
	if len(entries) != 1 || entries[0].ActionType != domain.ActionMessageFlagged || entries[0].ModeratorID != "" {
		t.Fatalf("expected one message_flagged entry, got %+v", entries)
	}
	if entries[0].AffectedUserID != "" {
		t.Fatalf("flag audit must not reveal user IDs")
	}

	flagged, _ := svc.ListFlagged(ctx, false, 1, 10)
	if flagged.Total != 1 || flagged.Items[0].ID != res.MessageID {
		t.Fatalf("expected the flagged message in the queue")
	}
}
