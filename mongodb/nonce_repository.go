package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pixelvault/authgate/domain"
)

// NonceRepository stores one challenge document per principal. Consumption
// is a single conditional FindOneAndDelete, so the document itself is the
// transaction boundary: two concurrent consumers cannot both match it.
type NonceRepository struct {
	coll *mongo.Collection
}

func NewNonceRepository(db *mongo.Database) domain.NonceRepository {
	return &NonceRepository{coll: db.Collection(NoncesCollection)}
}

func (r *NonceRepository) Put(ctx context.Context, nonce *domain.Nonce) error {
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": nonce.PrincipalID},
		nonce,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *NonceRepository) Get(ctx context.Context, principalID string) (*domain.Nonce, error) {
	var nonce domain.Nonce
	err := r.coll.FindOne(ctx, bson.M{"_id": principalID}).Decode(&nonce)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &nonce, nil
}

func (r *NonceRepository) ConsumeMatching(ctx context.Context, principalID, value string) (*domain.Nonce, error) {
	var nonce domain.Nonce
	err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": principalID, "value": value}).Decode(&nonce)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &nonce, nil
}

func (r *NonceRepository) IncrementAttempts(ctx context.Context, principalID string) (int, error) {
	var nonce domain.Nonce
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": principalID},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&nonce)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return nonce.Attempts, nil
}

func (r *NonceRepository) Delete(ctx context.Context, principalID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": principalID})
	return err
}
