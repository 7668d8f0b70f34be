package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

const auditCollection = "audit_log"

// AuditRepository is append-only: there is no update or delete path.
type AuditRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewAuditRepository(db *mongo.Database, timeout time.Duration) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection), timeout: timeout}
}

func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return insertAudit(ctx, r.coll, entry)
}

func (r *AuditRepository) List(ctx context.Context, f ports.AuditFilter) ([]*domain.AuditLogEntry, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{}
	if f.Token != "" {
		filter["token_hash"] = f.Token.String()
	}
	if f.ActionType != "" {
		filter["action_type"] = string(f.ActionType)
	}
	if f.ModeratorID != "" {
		filter["moderator_id"] = f.ModeratorID
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	// ObjectID hex ids sort by creation order, which breaks created_at ties.
	dir := -1
	if f.OldestFirst {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	var out []*domain.AuditLogEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode audit entries: %w", err)
	}
	for _, e := range out {
		e.CreatedAt = e.CreatedAt.UTC()
	}
	return out, total, nil
}

// EnsureIndexes creates the query indexes for the audit log.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "token_hash", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "moderator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "action_type", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// insertAudit is shared with the moderation transaction.
func insertAudit(ctx context.Context, coll *mongo.Collection, entry *domain.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = primitive.NewObjectID().Hex()
	}
	if _, err := coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
