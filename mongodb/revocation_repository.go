package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/pixelvault/authgate/domain"
)

// RevocationRepository stores revoked token IDs keyed by _id, so duplicate
// inserts collide on the primary key and first-write-wins falls out of the
// store's own uniqueness guarantee.
type RevocationRepository struct {
	coll *mongo.Collection
}

func NewRevocationRepository(db *mongo.Database) domain.RevocationRepository {
	return &RevocationRepository{coll: db.Collection(RevocationsCollection)}
}

func (r *RevocationRepository) Insert(ctx context.Context, entry *domain.RevocationEntry) error {
	_, err := r.coll.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		log.Debug().Str("token_id", entry.TokenID).Msg("token already revoked, keeping original entry")
		return nil
	}
	return err
}

func (r *RevocationRepository) Get(ctx context.Context, tokenID string) (*domain.RevocationEntry, error) {
	var entry domain.RevocationEntry
	err := r.coll.FindOne(ctx, bson.M{"_id": tokenID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *RevocationRepository) Delete(ctx context.Context, tokenID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": tokenID})
	return err
}

func (r *RevocationRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"original_expires_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
