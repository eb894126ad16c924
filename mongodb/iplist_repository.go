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

// IPListRepository keeps the durable allow and deny lists in two
// collections keyed by IP. Expired deny entries are treated as absent and
// lazily removed on lookup.
type IPListRepository struct {
	allow *mongo.Collection
	deny  *mongo.Collection
}

func NewIPListRepository(db *mongo.Database) domain.IPListRepository {
	return &IPListRepository{
		allow: db.Collection(AllowListCollection),
		deny:  db.Collection(DenyListCollection),
	}
}

func (r *IPListRepository) IsAllowed(ctx context.Context, ip string) (bool, error) {
	return r.lookup(ctx, r.allow, ip)
}

func (r *IPListRepository) IsDenied(ctx context.Context, ip string) (bool, error) {
	return r.lookup(ctx, r.deny, ip)
}

func (r *IPListRepository) lookup(ctx context.Context, coll *mongo.Collection, ip string) (bool, error) {
	var entry domain.IPListEntry
	err := coll.FindOne(ctx, bson.M{"_id": ip}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !entry.Active(time.Now().UTC()) {
		_, _ = coll.DeleteOne(ctx, bson.M{"_id": ip})
		return false, nil
	}
	return true, nil
}

func (r *IPListRepository) Allow(ctx context.Context, ip, reason string) error {
	entry := domain.IPListEntry{IP: ip, Reason: reason, CreatedAt: time.Now().UTC()}
	_, err := r.allow.ReplaceOne(ctx, bson.M{"_id": ip}, entry, options.Replace().SetUpsert(true))
	return err
}

func (r *IPListRepository) Deny(ctx context.Context, ip, reason string, until time.Time) error {
	entry := domain.IPListEntry{IP: ip, Reason: reason, ExpiresAt: until, CreatedAt: time.Now().UTC()}
	_, err := r.deny.ReplaceOne(ctx, bson.M{"_id": ip}, entry, options.Replace().SetUpsert(true))
	return err
}
