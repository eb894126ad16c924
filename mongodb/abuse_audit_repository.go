package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/pixelvault/authgate/domain"
)

// AbuseAuditRepository is append-only; entries are written when a rate
// window is exceeded and read out-of-band by operators.
type AbuseAuditRepository struct {
	coll *mongo.Collection
}

func NewAbuseAuditRepository(db *mongo.Database) domain.AbuseAuditRepository {
	return &AbuseAuditRepository{coll: db.Collection(AbuseAuditCollection)}
}

func (r *AbuseAuditRepository) Insert(ctx context.Context, entry *domain.AbuseAuditEntry) error {
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}
