package domain

import "time"

// Nonce is a one-time login challenge. At most one live nonce exists per
// principal; issuing a new challenge overwrites the old record.
type Nonce struct {
	PrincipalID string    `bson:"_id"        json:"principal_id"`
	Value       string    `bson:"value"      json:"-"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`
	Attempts    int       `bson:"attempts"   json:"attempts"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Expired reports whether the challenge window has passed.
func (n *Nonce) Expired(now time.Time) bool {
	return now.After(n.ExpiresAt)
}
