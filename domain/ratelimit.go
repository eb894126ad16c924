package domain

import "time"

// IPListEntry is a durable per-IP override consulted before rate counting.
// Allow entries are permanent; deny entries expire at ExpiresAt (zero means
// permanent here too, though the guard always sets a 24h window).
type IPListEntry struct {
	IP        string    `bson:"_id"                  json:"ip"`
	ExpiresAt time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt time.Time `bson:"created_at"           json:"created_at"`
	Reason    string    `bson:"reason,omitempty"     json:"reason,omitempty"`
}

// Active reports whether the entry still applies.
func (e *IPListEntry) Active(now time.Time) bool {
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

// AbuseAuditEntry is the durable record written each time a rate window is
// exceeded. IDs are ULIDs so entries sort by time.
type AbuseAuditEntry struct {
	ID          string    `bson:"_id"                json:"id"`
	IP          string    `bson:"ip"                 json:"ip"`
	Endpoint    string    `bson:"endpoint"           json:"endpoint"`
	UserAgent   string    `bson:"user_agent"         json:"user_agent"`
	PrincipalID string    `bson:"principal_id,omitempty" json:"principal_id,omitempty"`
	At          time.Time `bson:"at"                 json:"at"`
}
