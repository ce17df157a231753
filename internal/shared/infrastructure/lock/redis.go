package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-taken by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManager shares locks across replicas with SET NX PX. The TTL bounds
// how long a crashed holder can block a key.
type RedisManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ Manager = (*RedisManager)(nil)

// NewRedisManager creates a Redis-backed lock manager.
func NewRedisManager(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisManager{client: client, prefix: "augur:lock:", ttl: ttl, logger: logger}
}

func (m *RedisManager) TryAcquire(ctx context.Context, key string) (Release, error) {
	fullKey := m.prefix + key
	token := uuid.NewString()

	ok, err := m.client.SetNX(ctx, fullKey, token, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must succeed even when the request context is gone.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, m.client, []string{fullKey}, token).Err(); err != nil {
				m.logger.Warn("failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}
