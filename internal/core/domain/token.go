package domain

import (
	"strconv"
	"time"
)

// WindowDuration is the fixed length of a token rotation window.
const WindowDuration = 2 * time.Minute

// WindowID identifies a rotation window: floor(unix_ms / 120000).
type WindowID int64

// WindowAt returns the window containing t.
func WindowAt(t time.Time) WindowID {
	ms := t.UnixMilli()
	size := WindowDuration.Milliseconds()
	// floor division; pre-epoch instants round towards -inf
	w := ms / size
	if ms%size < 0 {
		w--
	}
	return WindowID(w)
}

// Start is the first instant that belongs to the window.
func (w WindowID) Start() time.Time {
	return time.UnixMilli(int64(w) * WindowDuration.Milliseconds()).UTC()
}

// End is the first instant of the next window.
func (w WindowID) End() time.Time {
	return w.Start().Add(WindowDuration)
}

func (w WindowID) String() string {
	return strconv.FormatInt(int64(w), 10)
}

// Token is the pseudonymous, per-window handle for a sender. It is the only
// sender identifier moderators and receivers ever see.
type Token string

func (t Token) String() string {
	return string(t)
}

// Valid reports whether t has the shape of an issued token: 64 lowercase hex
// characters.
func (t Token) Valid() bool {
	if len(t) != 64 {
		return false
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
