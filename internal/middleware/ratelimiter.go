package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// windowScript counts a hit and arms the window TTL in one step, so a key can
// never be left without an expiry. Keys found without a TTL are re-armed.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

type RateLimiter struct {
	redisClient *redis.Client
	log         *zap.Logger
}

func NewRateLimiter(client *redis.Client, log *zap.Logger) *RateLimiter {
	return &RateLimiter{redisClient: client, log: log.Named("ratelimit")}
}

// Limit allows `limit` requests per window, keyed by the authenticated user
// or by client IP when there is none. Redis errors let the request through.
func (rl *RateLimiter) Limit(keySuffix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.ClientIP()
		if id := UserID(c); id != uuid.Nil {
			subject = id.String()
		}

		key := fmt.Sprintf("rate_limit:%s:%s", keySuffix, subject)

		res, err := windowScript.Run(c, rl.redisClient, []string{key}, window.Milliseconds()).Int64Slice()
		if err == nil && len(res) != 2 {
			err = fmt.Errorf("unexpected reply length %d", len(res))
		}
		if err != nil {
			rl.log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		count, ttl := res[0], time.Duration(res[1])*time.Millisecond

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": fmt.Sprintf("%.0f seconds", ttl.Seconds()),
			})
			return
		}
		c.Next()
	}
}
