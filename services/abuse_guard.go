package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/pixelvault/authgate/cache"
	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
	"github.com/pixelvault/authgate/internal/alert"
)

// KeyBinding selects which request attributes, beyond IP and endpoint,
// compose the rate window key.
type KeyBinding string

const (
	BindIP                 KeyBinding = "ip"
	BindUserAgent          KeyBinding = "ua"
	BindPrincipal          KeyBinding = "principal"
	BindUserAgentPrincipal KeyBinding = "ua+principal"
)

const (
	exceedWindow    = 10 * time.Minute
	denylistWindow  = 24 * time.Hour
	denylistAt      = 7
	listCacheTTL    = time.Minute
	sanitizedUAMin  = 8
	unknownUA       = "unknown"
)

// automationSignatures are user-agent markers normalized to the unknown
// sentinel before counting, closing the trivial spoof of rotating empty or
// scripted user agents to spread load across window keys.
var automationSignatures = []string{
	"curl", "wget", "python-requests", "go-http-client", "httpclient",
	"bot", "crawler", "spider", "headless",
}

// AbuseRequest is the request context the guard keys on.
type AbuseRequest struct {
	IP          string
	UserAgent   string
	PrincipalID string
	Endpoint    string
}

// AbuseGuard is the sliding-window rate limiter with escalating temporary
// blocks and permanent deny-listing. Per IP the state machine is
// Normal -> TemporarilyBlocked(duration) -> Denylisted(24h).
type AbuseGuard struct {
	counters  cache.CounterCache
	lists     domain.IPListRepository
	audit     domain.AbuseAuditRepository
	alerts    alert.Sink
	binding   KeyBinding
	listCache *ttlcache.Cache[string, bool]
}

func NewAbuseGuard(
	counters cache.CounterCache,
	lists domain.IPListRepository,
	audit domain.AbuseAuditRepository,
	alerts alert.Sink,
	binding KeyBinding,
) *AbuseGuard {
	listCache := ttlcache.New(
		ttlcache.WithTTL[string, bool](listCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, bool](),
	)
	go listCache.Start()

	return &AbuseGuard{
		counters:  counters,
		lists:     lists,
		audit:     audit,
		alerts:    alerts,
		binding:   binding,
		listCache: listCache,
	}
}

// SanitizeUserAgent normalizes too-short or automation user agents to the
// unknown sentinel. Requests carrying the sentinel are rejected before any
// counting.
func SanitizeUserAgent(userAgent string) string {
	trimmed := strings.TrimSpace(userAgent)
	if len(trimmed) < sanitizedUAMin {
		return unknownUA
	}
	lowered := strings.ToLower(trimmed)
	for _, signature := range automationSignatures {
		if strings.Contains(lowered, signature) {
			return unknownUA
		}
	}
	return trimmed
}

// Check enforces the rate limit for one request. A nil return allows the
// request; a typed RateLimited/Denylisted error denies it.
//
// If the counter cache is unreachable the guard fails closed for the
// increment but open for the request: the cache error is logged and the
// request allowed, trading accuracy for availability during an outage.
func (g *AbuseGuard) Check(ctx context.Context, req AbuseRequest, windowSeconds, maxAttempts int) error {
	userAgent := SanitizeUserAgent(req.UserAgent)
	if userAgent == unknownUA {
		log.Warn().Str("ip", req.IP).Str("endpoint", req.Endpoint).Msg("rejecting request with unknown user agent")
		return autherrors.New(autherrors.CodeRateLimited, "unidentifiable client")
	}

	if g.cachedListLookup(ctx, "allow", req.IP, g.lists.IsAllowed) {
		return nil
	}
	if g.cachedListLookup(ctx, "deny", req.IP, g.lists.IsDenied) {
		return autherrors.New(autherrors.CodeDenylisted, "client denied")
	}

	window := time.Duration(windowSeconds) * time.Second
	key := g.windowKey(req, userAgent)
	count, err := g.counters.Increment(ctx, key, window)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("counter cache unreachable, allowing request")
		return nil
	}
	if count <= int64(maxAttempts) {
		return nil
	}

	g.recordExceeded(ctx, req, userAgent, key)
	return autherrors.New(autherrors.CodeRateLimited, "rate limit exceeded")
}

// recordExceeded handles the escalation path for a request over its window
// limit: durable audit, per-IP exceed counting, block stretching, alerting,
// and promotion to the deny list.
func (g *AbuseGuard) recordExceeded(ctx context.Context, req AbuseRequest, userAgent, primaryKey string) {
	entry := &domain.AbuseAuditEntry{
		ID:          ulid.Make().String(),
		IP:          req.IP,
		Endpoint:    req.Endpoint,
		UserAgent:   userAgent,
		PrincipalID: req.PrincipalID,
		At:          time.Now().UTC(),
	}
	if err := g.audit.Insert(ctx, entry); err != nil {
		log.Error().Err(err).Str("ip", req.IP).Msg("failed to write abuse audit entry")
	}

	exceedKey := fmt.Sprintf("exceed:%s", req.IP)
	exceedCount, err := g.counters.Increment(ctx, exceedKey, exceedWindow)
	if err != nil {
		log.Error().Err(err).Str("ip", req.IP).Msg("failed to count rate limit exceedance")
		return
	}

	if exceedCount == 1 {
		g.alerts.Notify(ctx, "rate limit exceeded",
			fmt.Sprintf("ip=%s endpoint=%s ua=%q principal=%s", req.IP, req.Endpoint, userAgent, req.PrincipalID))
	}

	if err := g.counters.Expire(ctx, primaryKey, blockDuration(exceedCount)); err != nil {
		log.Error().Err(err).Str("key", primaryKey).Msg("failed to extend block window")
	}

	if exceedCount >= denylistAt {
		until := time.Now().UTC().Add(denylistWindow)
		if err := g.lists.Deny(ctx, req.IP, "rate limit escalation", until); err != nil {
			log.Error().Err(err).Str("ip", req.IP).Msg("failed to promote ip to deny list")
			return
		}
		g.listCache.Delete("deny:" + req.IP)
		log.Warn().Str("ip", req.IP).Time("until", until).Msg("ip promoted to deny list")
		g.alerts.Notify(ctx, "ip denylisted",
			fmt.Sprintf("ip=%s blocked until %s after %d exceeded windows", req.IP, until.Format(time.RFC3339), exceedCount))
	}
}

// blockDuration escalates the temporary block as the exceed counter grows.
func blockDuration(exceedCount int64) time.Duration {
	switch {
	case exceedCount >= 5:
		return 60 * time.Minute
	case exceedCount >= 3:
		return 30 * time.Minute
	default:
		return 10 * time.Minute
	}
}

// windowKey composes the counter key per the configured binding mode. IP
// and endpoint always participate. Callers that have no principal (the
// HTTP edge runs its limiter before authentication) leave that component
// empty, so principal-bound modes degrade to IP keying there.
func (g *AbuseGuard) windowKey(req AbuseRequest, userAgent string) string {
	parts := []string{"rl", req.IP}
	switch g.binding {
	case BindUserAgent:
		parts = append(parts, HashContext(userAgent))
	case BindPrincipal:
		parts = append(parts, req.PrincipalID)
	case BindUserAgentPrincipal:
		parts = append(parts, HashContext(userAgent), req.PrincipalID)
	}
	parts = append(parts, req.Endpoint)
	return strings.Join(parts, ":")
}

// cachedListLookup consults the durable list through a short-TTL cache so
// hot paths avoid a store round-trip per request. Store errors fail open:
// the list is an override, not the primary control.
func (g *AbuseGuard) cachedListLookup(ctx context.Context, kind, ip string, lookup func(context.Context, string) (bool, error)) bool {
	cacheKey := kind + ":" + ip
	if item := g.listCache.Get(cacheKey); item != nil {
		return item.Value()
	}

	listed, err := lookup(ctx, ip)
	if err != nil {
		log.Error().Err(err).Str("ip", ip).Str("list", kind).Msg("ip list unreachable, treating as unlisted")
		return false
	}
	g.listCache.Set(cacheKey, listed, ttlcache.DefaultTTL)
	return listed
}

// Stop halts the guard's cache janitor.
func (g *AbuseGuard) Stop() {
	g.listCache.Stop()
}
