package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

const recordsCollection = "moderation_records"

// ModerationRepository stores records keyed by token (_id). Apply writes the
// record and its audit entry in one multi-document transaction, so the
// deployment must be a replica set.
type ModerationRepository struct {
	client  *mongo.Client
	records *mongo.Collection
	audit   *mongo.Collection
	timeout time.Duration
}

func NewModerationRepository(db *mongo.Database, timeout time.Duration) *ModerationRepository {
	return &ModerationRepository{
		client:  db.Client(),
		records: db.Collection(recordsCollection),
		audit:   db.Collection(auditCollection),
		timeout: timeout,
	}
}

func (r *ModerationRepository) Get(ctx context.Context, token domain.Token) (*domain.ModerationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec domain.ModerationRecord
	if err := r.records.FindOne(ctx, bson.M{"_id": token}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("find moderation record: %w", err)
	}
	return normalise(&rec), nil
}

func (r *ModerationRepository) Touch(ctx context.Context, token domain.Token, ownerID string, now time.Time) (*domain.ModerationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	onInsert := bson.M{
		"is_frozen":      false,
		"ban_type":       domain.BanNone,
		"warning_issued": false,
		"created_at":     now,
		"last_action_at": now,
		"version":        int64(1),
	}
	if ownerID != "" {
		onInsert["owner_id"] = ownerID
	}

	var rec domain.ModerationRecord
	err := r.records.FindOneAndUpdate(ctx,
		bson.M{"_id": token},
		bson.M{"$setOnInsert": onInsert},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&rec)
	if mongo.IsDuplicateKeyError(err) {
		// lost an upsert race; the winner's document is there now
		err = r.records.FindOne(ctx, bson.M{"_id": token}).Decode(&rec)
	}
	if err != nil {
		return nil, fmt.Errorf("touch moderation record: %w", err)
	}

	if rec.OwnerID == "" && ownerID != "" {
		var owned domain.ModerationRecord
		err := r.records.FindOneAndUpdate(ctx,
			bson.M{"_id": token, "owner_id": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"owner_id": ownerID}, "$inc": bson.M{"version": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&owned)
		switch {
		case err == nil:
			rec = owned
		case errors.Is(err, mongo.ErrNoDocuments):
			// someone else recorded the owner first
			if err := r.records.FindOne(ctx, bson.M{"_id": token}).Decode(&rec); err != nil {
				return nil, fmt.Errorf("touch moderation record: %w", err)
			}
		default:
			return nil, fmt.Errorf("set record owner: %w", err)
		}
	}
	return normalise(&rec), nil
}

func (r *ModerationRepository) Apply(ctx context.Context, rec *domain.ModerationRecord, entry *domain.AuditLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	next := rec.Clone()
	next.Version = rec.Version + 1

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if rec.Version == 0 {
			if _, err := r.records.InsertOne(sc, next); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return nil, domain.ErrVersionConflict
				}
				return nil, fmt.Errorf("insert moderation record: %w", err)
			}
		} else {
			res, err := r.records.ReplaceOne(sc, bson.M{"_id": rec.Token, "version": rec.Version}, next)
			if err != nil {
				return nil, fmt.Errorf("replace moderation record: %w", err)
			}
			if res.MatchedCount == 0 {
				return nil, domain.ErrVersionConflict
			}
		}
		return nil, insertAudit(sc, r.audit, entry)
	})
	if err != nil {
		return err
	}
	rec.Version = next.Version
	return nil
}

func (r *ModerationRepository) ListActiveBySubject(ctx context.Context, ownerID string, now time.Time) ([]*domain.ModerationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"owner_id": ownerID,
		"$or": bson.A{
			bson.M{"is_frozen": true},
			bson.M{"ban_expiry": bson.M{"$gt": now}},
		},
	}
	cur, err := r.records.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list active records: %w", err)
	}
	var out []*domain.ModerationRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode active records: %w", err)
	}
	for _, rec := range out {
		normalise(rec)
	}
	return out, nil
}

// EnsureIndexes creates the owner lookup index used for cross-window checks.
func (r *ModerationRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "is_frozen", Value: 1}, {Key: "ban_expiry", Value: 1}},
	})
	return err
}

// normalise converts decoded BSON dates back to UTC.
func normalise(rec *domain.ModerationRecord) *domain.ModerationRecord {
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.LastActionAt = rec.LastActionAt.UTC()
	if rec.BanExpiry != nil {
		exp := rec.BanExpiry.UTC()
		rec.BanExpiry = &exp
	}
	return rec
}
