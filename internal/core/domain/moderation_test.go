package domain

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStatusAt_Precedence(t *testing.T) {
	rec := NewModerationRecord("tok", "u1", t0)
	if got := rec.StatusAt(t0).Kind; got != StatusActive {
		t.Fatalf("expected active, got %s", got)
	}

	rec.Warn(t0)
	if got := rec.StatusAt(t0).Kind; got != StatusWarned {
		t.Fatalf("expected warned, got %s", got)
	}

	if _, err := rec.TempBan(5*time.Minute, t0); err != nil {
		t.Fatalf("temp ban: %v", err)
	}
	st := rec.StatusAt(t0.Add(time.Minute))
	if st.Kind != StatusTempBanned || st.BanType != BanTemp5Min || st.Remaining != 4*time.Minute {
		t.Fatalf("unexpected status: %+v", st)
	}

	rec.Freeze(t0)
	if got := rec.StatusAt(t0.Add(time.Minute)).Kind; got != StatusFrozen {
		t.Fatalf("expected frozen, got %s", got)
	}
}

func TestStatusAt_LazyExpiryKeepsHistory(t *testing.T) {
	rec := NewModerationRecord("tok", "u1", t0)
	_, _ = rec.TempBan(5*time.Minute, t0)

	st := rec.StatusAt(t0.Add(6 * time.Minute))
	if st.Kind != StatusActive {
		t.Fatalf("expected active after expiry, got %s", st.Kind)
	}
	if rec.BanExpiry == nil || rec.BanType != BanTemp5Min {
		t.Fatalf("historical ban fields must be retained")
	}
}

func TestStatusAt_NilRecordIsActive(t *testing.T) {
	var rec *ModerationRecord
	if got := rec.StatusAt(t0).Kind; got != StatusActive {
		t.Fatalf("expected active, got %s", got)
	}
}

func TestTempBan_KeepsLaterExpiry(t *testing.T) {
	rec := NewModerationRecord("tok", "u1", t0)
	if moved, _ := rec.TempBan(time.Hour, t0); !moved {
		t.Fatalf("first ban must set expiry")
	}
	moved, err := rec.TempBan(5*time.Minute, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("temp ban: %v", err)
	}
	if moved {
		t.Fatalf("shorter ban must not move the expiry")
	}
	if rec.BanType != BanTemp1Hour || !rec.BanExpiry.Equal(t0.Add(time.Hour)) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.LastActionAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("last action must still advance")
	}
}

func TestTempBan_InvalidDuration(t *testing.T) {
	rec := NewModerationRecord("tok", "u1", t0)
	if _, err := rec.TempBan(10*time.Minute, t0); !errors.Is(err, ErrInvalidBanDuration) {
		t.Fatalf("expected ErrInvalidBanDuration, got %v", err)
	}
	if rec.BanExpiry != nil {
		t.Fatalf("record must be untouched")
	}
}

func TestUnfreeze(t *testing.T) {
	rec := NewModerationRecord("tok", "u1", t0)
	rec.Freeze(t0)
	_, _ = rec.TempBan(time.Hour, t0)
	rec.Unfreeze(t0.Add(time.Minute))

	st := rec.StatusAt(t0.Add(time.Minute))
	if st.Kind != StatusTempBanned {
		t.Fatalf("ban applied after freeze must outlive unfreeze, got %s", st.Kind)
	}

	rec2 := NewModerationRecord("tok2", "u1", t0)
	rec2.Freeze(t0)
	rec2.Unfreeze(t0)
	if got := rec2.StatusAt(t0); got.Kind != StatusActive || rec2.BanType != BanNone {
		t.Fatalf("expected clean active record, got %+v", got)
	}
}

func TestUnfreeze_RunningTempBanSurvives(t *testing.T) {
	rec := NewModerationRecord("tok", "u1", t0)
	_, _ = rec.TempBan(time.Hour, t0)
	rec.Freeze(t0.Add(time.Minute))
	rec.Unfreeze(t0.Add(2 * time.Minute))

	st := rec.StatusAt(t0.Add(3 * time.Minute))
	if st.Kind != StatusTempBanned || st.BanType != BanTemp1Hour || st.Remaining != 57*time.Minute {
		t.Fatalf("ban issued before the freeze must keep running, got %+v", st)
	}
	if rec.BanType != BanTemp1Hour || !rec.BanExpiry.Equal(t0.Add(time.Hour)) {
		t.Fatalf("ban history must be kept, got %+v", rec)
	}
	if got := rec.StatusAt(t0.Add(time.Hour)).Kind; got != StatusActive {
		t.Fatalf("expected active after expiry, got %s", got)
	}
}

func TestTempBan_WhileFrozenKeepsLaterExpiry(t *testing.T) {
	rec := NewModerationRecord("tok", "u1", t0)
	_, _ = rec.TempBan(time.Hour, t0)
	rec.Freeze(t0.Add(time.Minute))

	moved, err := rec.TempBan(5*time.Minute, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("temp ban: %v", err)
	}
	if moved {
		t.Fatalf("a shorter ban must not cut a running one while frozen")
	}
	rec.Unfreeze(t0.Add(3 * time.Minute))

	st := rec.StatusAt(t0.Add(10 * time.Minute))
	if st.Kind != StatusTempBanned || !st.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("expected the 1h ban to still run, got %+v", st)
	}
}

func TestWorse(t *testing.T) {
	active := Status{Kind: StatusActive}
	warned := Status{Kind: StatusWarned}
	short := Status{Kind: StatusTempBanned, Remaining: time.Minute}
	long := Status{Kind: StatusTempBanned, Remaining: time.Hour}
	frozen := Status{Kind: StatusFrozen}

	if Worse(active, warned).Kind != StatusWarned {
		t.Errorf("warned must beat active")
	}
	if Worse(long, frozen).Kind != StatusFrozen {
		t.Errorf("frozen must beat temp ban")
	}
	if Worse(short, long).Remaining != time.Hour || Worse(long, short).Remaining != time.Hour {
		t.Errorf("longer ban must win")
	}
	if Worse(frozen, warned).Kind != StatusFrozen {
		t.Errorf("frozen must beat warned")
	}
}

func TestWindowAt(t *testing.T) {
	if WindowAt(time.UnixMilli(-1)) != -1 {
		t.Errorf("pre-epoch instants must floor")
	}
	w := WindowAt(t0)
	if w.Start().After(t0) {
		t.Errorf("window must start at or before t0")
	}
	if !w.End().After(t0) {
		t.Errorf("window must end after t0")
	}
}
