package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "hh-matcher:match:"

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type redisEnvelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Redis shares cached results between instances. Keys expire on the server
// after the TTL and the stored timestamp is checked on read as well.
type Redis struct {
	rdb    redisKV
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewRedis(rdb redisKV, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, ttl: ttl, now: time.Now, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache get failed", zap.Error(err))
		}
		return nil, false
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Warn("redis cache entry is corrupted", zap.Error(err))
		return nil, false
	}

	if !fresh(env.StoredAt, r.now(), r.ttl) {
		return nil, false
	}
	return env.Payload, true
}

// Set stores payload, which must be valid JSON.
func (r *Redis) Set(ctx context.Context, key string, payload []byte) {
	raw, err := json.Marshal(redisEnvelope{StoredAt: r.now().UTC(), Payload: payload})
	if err != nil {
		r.logger.Warn("redis cache encode failed", zap.Error(err))
		return
	}

	if err := r.rdb.Set(ctx, redisKeyPrefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", zap.Error(err))
	}
}
