package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/ratelimit"
	"github.com/pageza/recipe-lens/backend/internal/service"
)

// KeyFunc picks the identity a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByClientIP counts anonymous requests per client address.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUser counts per authenticated user, falling back to the client address.
func ByUser(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + id.String()
	}
	return ByClientIP(c)
}

// RateLimit enforces the route's budget. When the limiter store is
// unavailable the request is let through.
func RateLimit(limiter *ratelimit.Limiter, route ratelimit.Route, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Admit(c.Request.Context(), key(c), route)
		if err != nil {
			logging.Ctx(c.Request.Context()).Warn().
				Err(err).
				Str("route", string(route)).
				Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		setRateLimitHeaders(c, d)
		if !d.Allowed {
			_ = c.Error(&service.RateLimitError{
				Route:      string(route),
				Limit:      d.Limit,
				RetryAfter: d.RetryAfter,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	if d.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}
