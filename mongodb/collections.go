package mongodb

const (
	NoncesCollection      = "auth_nonces"       // One-time login challenges
	RevocationsCollection = "auth_revocations"  // Revoked token IDs
	CSRFCollection        = "auth_csrf_tokens"  // Per-principal mutation tokens
	AllowListCollection   = "ip_allowlist"      // Durable per-IP allow overrides
	DenyListCollection    = "ip_denylist"       // Durable per-IP deny overrides
	AbuseAuditCollection  = "abuse_audit"       // Exceeded rate checks, for audit
)
