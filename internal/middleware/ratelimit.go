package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/scribehub/api/pkg/response"
)

// KEYS: counter
// ARGV: window in ms
// Returns {count, remaining ttl in ms}; the window starts on the first hit.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RateLimiter counts requests per subject in fixed Redis windows
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit allows maxRequests per window for the authenticated user, or per
// client IP on anonymous routes. A non-positive max disables the limit.
func (rl *RateLimiter) Limit(bucket string, maxRequests int, window time.Duration) fiber.Handler {
	if maxRequests <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	limit := strconv.Itoa(maxRequests)

	return func(c *fiber.Ctx) error {
		subject := GetUserID(c)
		if subject == "" {
			subject = "ip:" + c.IP()
		}
		key := "ratelimit:" + bucket + ":" + subject

		res, err := hitScript.Run(c.UserContext(), rl.redis, []string{key}, window.Milliseconds()).Int64Slice()
		if err != nil || len(res) != 2 {
			// fail open
			log.Printf("[ratelimit] %s: %v", key, err)
			return c.Next()
		}
		count, ttl := res[0], time.Duration(res[1])*time.Millisecond

		if count > int64(maxRequests) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", limit)
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(int64(maxRequests)-count, 10))
		return c.Next()
	}
}

// UploadLimit caps recording uploads per hour
func (rl *RateLimiter) UploadLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("upload", maxPerHour, time.Hour)
}

// AuthLimit caps register and login attempts per minute
func (rl *RateLimiter) AuthLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("auth", maxPerMin, time.Minute)
}
