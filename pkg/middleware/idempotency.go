package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/hngpay/splitpay/pkg/response"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency key
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// IdempotencyKeyPrefix is the Redis key prefix for idempotency records
	IdempotencyKeyPrefix = "idempotency:"
)

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrRequestInProgress = errors.New("request in progress")
)

// IdempotencyStatus represents the status of an idempotency record
type IdempotencyStatus string

const (
	StatusProcessing IdempotencyStatus = "processing"
	StatusCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord stores the state of an idempotent request
type IdempotencyRecord struct {
	Key          string            `json:"key"`
	Status       IdempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// RedisClient is the subset of Redis operations the middleware needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for the idempotency middleware
type IdempotencyConfig struct {
	// Redis client for storing idempotency records
	Redis RedisClient
	// TTL for completed idempotency records (default: 24h)
	TTL time.Duration
	// ProcessingTTL for in-flight records (default: 60s)
	ProcessingTTL time.Duration
}

type bodyRecorder struct {
	gin.ResponseWriter
	body []byte
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

// Idempotency makes a mutating endpoint safe to retry: the same
// X-Idempotency-Key replays the stored response instead of re-executing.
// Requests without the header pass through untouched.
func Idempotency(cfg *IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = 60 * time.Second
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || cfg.Redis == nil {
			c.Next()
			return
		}

		redisKey := IdempotencyKeyPrefix + key
		reqHash := hashRequest(c)

		// Claim the key; losing the race means another request holds it
		claim := IdempotencyRecord{
			Key:         key,
			Status:      StatusProcessing,
			RequestHash: reqHash,
			CreatedAt:   time.Now().UTC(),
		}
		claimJSON, _ := json.Marshal(claim)

		set, err := cfg.Redis.SetNX(c.Request.Context(), redisKey, claimJSON, cfg.ProcessingTTL).Result()
		if err != nil {
			// Redis down: let the request through rather than block payments
			c.Next()
			return
		}

		if !set {
			existing, err := cfg.Redis.Get(c.Request.Context(), redisKey).Result()
			if err != nil {
				c.Next()
				return
			}

			var record IdempotencyRecord
			if err := json.Unmarshal([]byte(existing), &record); err != nil {
				c.Next()
				return
			}

			if record.RequestHash != reqHash {
				response.Error(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED",
					"idempotency key was used with a different request body", "")
				c.Abort()
				return
			}

			if record.Status == StatusProcessing {
				response.Error(c, http.StatusConflict, "REQUEST_IN_PROGRESS",
					"a request with this idempotency key is still being processed", "")
				c.Abort()
				return
			}

			// Replay the stored response
			c.Data(record.ResponseCode, "application/json", []byte(record.ResponseBody))
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		c.Next()

		now := time.Now().UTC()
		claim.Status = StatusCompleted
		claim.ResponseCode = c.Writer.Status()
		claim.ResponseBody = string(recorder.body)
		claim.CompletedAt = &now

		done, _ := json.Marshal(claim)
		cfg.Redis.Set(c.Request.Context(), redisKey, done, cfg.TTL)
	}
}

func hashRequest(c *gin.Context) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))

	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err == nil {
			h.Write(body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
