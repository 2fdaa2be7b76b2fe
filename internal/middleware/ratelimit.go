package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitAlgorithm selects the limiter implementation.
type RateLimitAlgorithm string

const (
	TokenBucket RateLimitAlgorithm = "token_bucket"
	FixedWindow RateLimitAlgorithm = "fixed_window"
)

// RateLimitType selects what the limit key is derived from.
type RateLimitType string

const (
	RateLimitByIP       RateLimitType = "ip"
	RateLimitByUser     RateLimitType = "user"
	RateLimitByEndpoint RateLimitType = "endpoint"
)

// RateLimitConfig describes one limit rule.
type RateLimitConfig struct {
	Limit     int
	Window    int // seconds
	Algorithm RateLimitAlgorithm
	Type      RateLimitType
	// Optional custom key derivation.
	KeyFunc func(*gin.Context) string
}

// RateLimiter decides whether a request passes.
type RateLimiter interface {
	Allow(ctx context.Context, key string, config *RateLimitConfig) (*RateLimitResult, error)
}

// RateLimitResult is the outcome of one limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   int64 // unix seconds
	Limit     int
}

// RedisRateLimiter implements the limiter on Redis with Lua scripts so the
// check-and-update is atomic across API replicas.
type RedisRateLimiter struct {
	redis *redis.Client
}

// NewRedisRateLimiter creates a Redis-backed rate limiter.
func NewRedisRateLimiter(redis *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{redis: redis}
}

// Allow checks and consumes one unit of the limit.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, config *RateLimitConfig) (*RateLimitResult, error) {
	switch config.Algorithm {
	case FixedWindow:
		return r.fixedWindow(ctx, key, config)
	default:
		return r.tokenBucket(ctx, key, config)
	}
}

func (r *RedisRateLimiter) tokenBucket(ctx context.Context, key string, config *RateLimitConfig) (*RateLimitResult, error) {
	now := time.Now().Unix()
	bucketKey := fmt.Sprintf("ratelimit:token:%s", key)

	script := `
		local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'last_update')
		local capacity = tonumber(ARGV[1])
		local rate = tonumber(ARGV[2])
		local now = tonumber(ARGV[3])
		local requested = tonumber(ARGV[4])

		local tokens = tonumber(bucket[1]) or capacity
		local last_update = tonumber(bucket[2]) or now

		local elapsed = now - last_update
		local new_tokens = math.min(capacity, tokens + elapsed * rate)

		local allowed = new_tokens >= requested
		local remaining = 0

		if allowed then
			new_tokens = new_tokens - requested
			remaining = math.floor(new_tokens)
		end

		redis.call('HMSET', KEYS[1], 'tokens', new_tokens, 'last_update', now)
		redis.call('EXPIRE', KEYS[1], math.ceil(capacity / rate) + 1)

		return {allowed and 1 or 0, remaining, capacity}
	`

	ratePerSecond := float64(config.Limit) / float64(config.Window)

	result, err := r.redis.Eval(ctx, script, []string{bucketKey},
		config.Limit,
		ratePerSecond,
		now,
		1,
	).Result()
	if err != nil {
		return nil, err
	}

	values := result.([]interface{})
	return &RateLimitResult{
		Allowed:   values[0].(int64) == 1,
		Remaining: int(values[1].(int64)),
		ResetAt:   now + int64(config.Window),
		Limit:     int(values[2].(int64)),
	}, nil
}

func (r *RedisRateLimiter) fixedWindow(ctx context.Context, key string, config *RateLimitConfig) (*RateLimitResult, error) {
	now := time.Now().Unix()
	window := now / int64(config.Window)
	windowKey := fmt.Sprintf("ratelimit:fixed:%s:%d", key, window)

	script := `
		local current = tonumber(redis.call('GET', KEYS[1]) or 0)
		local limit = tonumber(ARGV[1])
		local ttl = tonumber(ARGV[2])

		local allowed = current < limit
		local remaining = limit - current - 1

		if allowed then
			redis.call('INCR', KEYS[1])
			if current == 0 then
				redis.call('EXPIRE', KEYS[1], ttl)
			end
		else
			remaining = -1
		end

		return {allowed and 1 or 0, remaining, limit}
	`

	result, err := r.redis.Eval(ctx, script, []string{windowKey},
		config.Limit,
		config.Window+1,
	).Result()
	if err != nil {
		return nil, err
	}

	values := result.([]interface{})
	return &RateLimitResult{
		Allowed:   values[0].(int64) == 1,
		Remaining: int(values[1].(int64)),
		ResetAt:   (window + 1) * int64(config.Window),
		Limit:     int(values[2].(int64)),
	}, nil
}

// RateLimitGroup applies a default rule with per-path overrides, so the
// whole API group runs one middleware while the gate transition endpoints
// get their own budget.
type RateLimitGroup struct {
	limiter         RateLimiter
	defaultConfig   *RateLimitConfig
	specificConfigs map[string]*RateLimitConfig
}

// NewRateLimitGroup creates a grouped limiter.
func NewRateLimitGroup(limiter RateLimiter, defaultConfig *RateLimitConfig) *RateLimitGroup {
	return &RateLimitGroup{
		limiter:         limiter,
		defaultConfig:   defaultConfig,
		specificConfigs: make(map[string]*RateLimitConfig),
	}
}

// AddSpecificConfig overrides the rule for one exact path.
func (g *RateLimitGroup) AddSpecificConfig(path string, config *RateLimitConfig) {
	g.specificConfigs[path] = config
}

// Middleware returns the gin handler. Redis errors fail open.
func (g *RateLimitGroup) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		config := g.defaultConfig
		if specific, ok := g.specificConfigs[c.Request.URL.Path]; ok {
			config = specific
		}

		key := generateKey(c, config)

		result, err := g.limiter.Allow(c.Request.Context(), key, config)
		if err != nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": result.ResetAt - time.Now().Unix(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// LoginRateLimit counts only failed attempts against the limit, so a user
// typing their password right is never locked out while brute force is.
func LoginRateLimit(limiter RateLimiter, config *RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := generateKey(c, config)

		// Probe without consuming.
		result, err := limiter.Allow(c.Request.Context(), key, &RateLimitConfig{
			Limit:     config.Limit,
			Window:    config.Window,
			Algorithm: config.Algorithm,
			Type:      config.Type,
			KeyFunc: func(*gin.Context) string {
				return key + ":check"
			},
		})
		if err != nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": result.ResetAt - time.Now().Unix(),
			})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() >= 400 {
			limiter.Allow(c.Request.Context(), key, config)
		}
	}
}

func setRateLimitHeaders(c *gin.Context, result *RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))
}

func generateKey(c *gin.Context, config *RateLimitConfig) string {
	if config.KeyFunc != nil {
		return config.KeyFunc(c)
	}

	switch config.Type {
	case RateLimitByUser:
		userID, exists := c.Get("userID")
		if !exists {
			return "ip:" + clientIP(c)
		}
		return fmt.Sprintf("user:%v", userID)
	case RateLimitByEndpoint:
		return fmt.Sprintf("endpoint:%s:%s", c.Request.Method, c.Request.URL.Path)
	default:
		return clientIP(c)
	}
}

func clientIP(c *gin.Context) string {
	xff := c.GetHeader("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := c.GetHeader("X-Real-Ip"); xri != "" {
		return xri
	}

	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
