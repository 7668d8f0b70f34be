package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

const messagesCollection = "messages"

type MessageRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMessageRepository(db *mongo.Database, timeout time.Duration) *MessageRepository {
	return &MessageRepository{coll: db.Collection(messagesCollection), timeout: timeout}
}

type mongoMessage struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	SenderToken  string             `bson:"sender_token"`
	RecipientID  string             `bson:"recipient_id"`
	Ciphertext   []byte             `bson:"ciphertext"`
	WindowID     int64              `bson:"window_id"`
	CreatedAt    time.Time          `bson:"created_at"`
	Read         bool               `bson:"read"`
	Flagged      bool               `bson:"flagged"`
	FlagReason   string             `bson:"flag_reason,omitempty"`
	FlaggedAt    *time.Time         `bson:"flagged_at,omitempty"`
	FlagResolved bool               `bson:"flag_resolved"`
	ResolvedBy   string             `bson:"resolved_by,omitempty"`
	ResolvedAt   *time.Time         `bson:"resolved_at,omitempty"`
}

func (mm *mongoMessage) toDomain() *domain.Message {
	return &domain.Message{
		ID:           mm.ID.Hex(),
		SenderToken:  domain.Token(mm.SenderToken),
		RecipientID:  mm.RecipientID,
		Ciphertext:   mm.Ciphertext,
		WindowID:     domain.WindowID(mm.WindowID),
		CreatedAt:    mm.CreatedAt.UTC(),
		Read:         mm.Read,
		Flagged:      mm.Flagged,
		FlagReason:   mm.FlagReason,
		FlaggedAt:    mm.FlaggedAt,
		FlagResolved: mm.FlagResolved,
		ResolvedBy:   mm.ResolvedBy,
		ResolvedAt:   mm.ResolvedAt,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := mongoMessage{
		ID:          primitive.NewObjectID(),
		SenderToken: msg.SenderToken.String(),
		RecipientID: msg.RecipientID,
		Ciphertext:  msg.Ciphertext,
		WindowID:    int64(msg.WindowID),
		CreatedAt:   msg.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.ID = doc.ID.Hex()
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mm mongoMessage
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&mm); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return mm.toDomain(), nil
}

func (r *MessageRepository) ListByRecipient(ctx context.Context, recipientID string, page, limit int) ([]*domain.Message, int64, error) {
	return r.list(ctx, bson.M{"recipient_id": recipientID}, page, limit)
}

func (r *MessageRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrMessageNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "recipient_id": recipientID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepository) Flag(ctx context.Context, id, recipientID, reason string, at time.Time) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}
	return r.update(ctx,
		bson.M{"_id": oid, "recipient_id": recipientID},
		bson.M{
			"$set": bson.M{
				"flagged":       true,
				"flag_reason":   reason,
				"flagged_at":    at,
				"flag_resolved": false,
			},
			"$unset": bson.M{"resolved_by": "", "resolved_at": ""},
		},
	)
}

func (r *MessageRepository) ListFlagged(ctx context.Context, includeResolved bool, page, limit int) ([]*domain.Message, int64, error) {
	filter := bson.M{"flagged": true}
	if !includeResolved {
		filter["flag_resolved"] = false
	}
	return r.list(ctx, filter, page, limit)
}

func (r *MessageRepository) Resolve(ctx context.Context, id, moderatorID string, at time.Time) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrMessageNotFound
	}
	return r.update(ctx,
		bson.M{"_id": oid, "flagged": true},
		bson.M{"$set": bson.M{
			"flag_resolved": true,
			"resolved_by":   moderatorID,
			"resolved_at":   at,
		}},
	)
}

// EnsureIndexes creates the inbox and flag-queue indexes.
func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "flagged", Value: 1}, {Key: "flag_resolved", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "sender_token", Value: 1}}},
	})
	return err
}

func (r *MessageRepository) update(ctx context.Context, filter, update bson.M) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mm mongoMessage
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&mm)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("update message: %w", err)
	}
	return mm.toDomain(), nil
}

func (r *MessageRepository) list(ctx context.Context, filter bson.M, page, limit int) ([]*domain.Message, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	var docs []mongoMessage
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]*domain.Message, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, total, nil
}
