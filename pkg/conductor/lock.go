package conductor

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Locker is the per-request mutex abstraction. Acquire must fail if the
// lock is already held by a different holder; Release is idempotent.
type Locker interface {
	Acquire(ctx context.Context, requestID string) error
	Release(ctx context.Context, requestID string) error
}

// InProcessLocker is a single-instance Locker: one in-memory mutex guards
// the set of held request ids, sufficient for single-node deployments.
type InProcessLocker struct {
	mu    sync.Mutex
	held  map[string]bool
}

// NewInProcessLocker creates an empty in-process locker.
func NewInProcessLocker() *InProcessLocker {
	return &InProcessLocker{held: make(map[string]bool)}
}

func (l *InProcessLocker) Acquire(ctx context.Context, requestID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[requestID] {
		return fmt.Errorf("request %s is already locked", requestID)
	}
	l.held[requestID] = true
	return nil
}

func (l *InProcessLocker) Release(ctx context.Context, requestID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, requestID)
	return nil
}

// redisAcquireScript sets a lock key only if absent, so a concurrent
// acquire from another instance fails cleanly instead of racing.
var redisAcquireScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    return 0
end
redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[2])
return 1
`)

// RedisLocker is a distributed Locker for multi-instance deployments,
// backed by a SET-if-absent Lua script with a TTL safety net in case a
// holder crashes without releasing.
type RedisLocker struct {
	client *redis.Client
	ttlSec int
}

// NewRedisLocker constructs a distributed locker over an existing client.
func NewRedisLocker(client *redis.Client, ttlSeconds int) *RedisLocker {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return &RedisLocker{client: client, ttlSec: ttlSeconds}
}

func (l *RedisLocker) key(requestID string) string {
	return "conductor:lock:" + requestID
}

func (l *RedisLocker) Acquire(ctx context.Context, requestID string) error {
	res, err := redisAcquireScript.Run(ctx, l.client, []string{l.key(requestID)}, "held", l.ttlSec).Int()
	if err != nil {
		return fmt.Errorf("redis lock acquire: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("request %s is already locked", requestID)
	}
	return nil
}

func (l *RedisLocker) Release(ctx context.Context, requestID string) error {
	return l.client.Del(ctx, l.key(requestID)).Err()
}
