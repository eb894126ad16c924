package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pixelvault/authgate/domain"
)

// CSRFRepository stores one mutation-token document per principal.
// ExtendMatching is a conditional update with the supplied value in the
// filter, so a concurrent mismatch-delete cannot interleave with a match.
type CSRFRepository struct {
	coll *mongo.Collection
}

func NewCSRFRepository(db *mongo.Database) domain.CSRFRepository {
	return &CSRFRepository{coll: db.Collection(CSRFCollection)}
}

func (r *CSRFRepository) Put(ctx context.Context, record *domain.CSRFRecord) error {
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": record.PrincipalID},
		record,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *CSRFRepository) Get(ctx context.Context, principalID string) (*domain.CSRFRecord, error) {
	var record domain.CSRFRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": principalID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *CSRFRepository) ExtendMatching(ctx context.Context, principalID, value string, until time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": principalID, "value": value, "expires_at": bson.M{"$gt": time.Now().UTC()}},
		bson.M{"$set": bson.M{"expires_at": until}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *CSRFRepository) Delete(ctx context.Context, principalID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": principalID})
	return err
}
