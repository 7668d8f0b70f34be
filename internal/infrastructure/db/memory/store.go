// Package memory is a process-local storage backend. It implements every
// repository port with the same semantics as the MongoDB adapters and is used
// for STORAGE_DRIVER=memory and as the fake in service tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

type idempotencyEntry struct {
	messageID string
	expiresAt time.Time
}

// Store holds all collections behind one mutex.
type Store struct {
	mu sync.Mutex

	users     map[string]*domain.User
	usernames map[string]string

	messages map[string]*domain.Message
	seq      int64
	msgSeq   map[string]int64

	records map[domain.Token]*domain.ModerationRecord
	audit   []*domain.AuditLogEntry

	idempotency map[string]idempotencyEntry

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]*domain.User),
		usernames:   make(map[string]string),
		messages:    make(map[string]*domain.Message),
		msgSeq:      make(map[string]int64),
		records:     make(map[domain.Token]*domain.ModerationRecord),
		idempotency: make(map[string]idempotencyEntry),
		now:         time.Now,
	}
}

// SetClock overrides the clock used for idempotency expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }
func (s *Store) Messages() *MessageRepository { return &MessageRepository{s: s} }
func (s *Store) Moderation() *ModerationRepository { return &ModerationRepository{s: s} }
func (s *Store) Audit() *AuditRepository { return &AuditRepository{s: s} }
func (s *Store) Idempotency() *IdempotencyStore { return &IdempotencyStore{s: s} }

// paginate returns the slice bounds for a 1-based page.
func paginate(total, page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return 0, 0
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}

func sortMessagesNewestFirst(s *Store, msgs []*domain.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return s.msgSeq[msgs[i].ID] > s.msgSeq[msgs[j].ID]
	})
}
