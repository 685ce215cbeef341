package http

import (
	"net/http"
	"strconv"
	"time"

	"gnsd/internal/domain"
	"gnsd/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
)

const (
	routeIdentitiesWrite    = "identities:write"
	routeBreadcrumbsCollect = "breadcrumbs:collect"
	routeEpochsPublish      = "epochs:publish"
	routeTrustRead          = "trust:read"
	routeHandlesRead        = "handles:read"
	routeHandlesWrite       = "handles:write"
)

// enforceRateLimit applies the fixed-window limit per identity and
// endpoint, falling back to the client address for anonymous routes. A
// limiter failure fails open: local operations must not stall on Redis.
func (s *Server) enforceRateLimit(c *gin.Context, routeID, identityID string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := ratelimit.IdentityKey(identityID, routeID)
	if identityID == "" {
		key = ratelimit.ClientKey(c.ClientIP(), routeID)
	}

	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", "route", routeID, "error", err)
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		c.Abort()
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		resetUnix := decision.ResetAt.Unix()
		c.Header("RateLimit-Reset", strconv.FormatInt(resetUnix, 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}
