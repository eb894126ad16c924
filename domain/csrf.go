package domain

import "time"

// CSRFRecord is the session-bound synchronizer token for one principal.
// One record per principal, not per request: verification extends the
// expiry instead of consuming the record, because several optimistic
// in-flight mutations may share one token.
type CSRFRecord struct {
	PrincipalID string    `bson:"_id"        json:"principal_id"`
	Value       string    `bson:"value"      json:"-"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`
}

// Expired reports whether the record is past its window.
func (r *CSRFRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
