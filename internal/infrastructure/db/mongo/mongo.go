package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetTimeout(timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// Repositories bundles every Mongo-backed port over one database.
type Repositories struct {
	Users      *UserRepository
	Messages   *MessageRepository
	Moderation *ModerationRepository
	Audit      *AuditRepository
}

// NewRepositories builds all repositories; timeout bounds each call.
func NewRepositories(db *mongo.Database, timeout time.Duration) *Repositories {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Repositories{
		Users:      NewUserRepository(db, timeout),
		Messages:   NewMessageRepository(db, timeout),
		Moderation: NewModerationRepository(db, timeout),
		Audit:      NewAuditRepository(db, timeout),
	}
}

// EnsureIndexes creates the indexes every collection relies on.
func (r *Repositories) EnsureIndexes(ctx context.Context) error {
	steps := []struct {
		coll string
		fn   func(context.Context) error
	}{
		{usersCollection, r.Users.EnsureIndexes},
		{messagesCollection, r.Messages.EnsureIndexes},
		{recordsCollection, r.Moderation.EnsureIndexes},
		{auditCollection, r.Audit.EnsureIndexes},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", s.coll, err)
		}
	}
	return nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
