package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/grovia/internal/auth"
	"github.com/example/grovia/internal/logging"
)

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", logging.RequestIDFromContext(c.Request.Context())),
		}
		if userID, ok := auth.GetUserID(c.Request.Context()); ok {
			fields = append(fields, zap.String("user_id", userID))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// limiterIdleTTL exceeds the full refill time of a bucket, so an evicted
// limiter would have been full anyway.
const limiterIdleTTL = 10 * time.Minute

// userRateLimiter hands every user a token bucket refilled at perMinute
// tokens per minute with a burst of perMinute. Buckets idle for longer than
// the TTL are evicted.
type userRateLimiter struct {
	mu        sync.Mutex
	limiters  *gocache.Cache
	perMinute int
}

func newUserRateLimiter(perMinute int) *userRateLimiter {
	return newUserRateLimiterWithTTL(perMinute, limiterIdleTTL)
}

func newUserRateLimiterWithTTL(perMinute int, ttl time.Duration) *userRateLimiter {
	return &userRateLimiter{limiters: gocache.New(ttl, 2*ttl), perMinute: perMinute}
}

func (l *userRateLimiter) allow(userID string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if cached, ok := l.limiters.Get(userID); ok {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)
	}
	// refresh the idle deadline on every request
	l.limiters.SetDefault(userID, limiter)
	l.mu.Unlock()
	return limiter.Allow()
}

// middleware must run after authentication; anonymous requests share one bucket.
func (l *userRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		if !l.allow(userID) {
			c.Header("Retry-After", "60")
			respondError(c, http.StatusTooManyRequests, "Too many detection requests, please try again later")
			return
		}
		c.Next()
	}
}
