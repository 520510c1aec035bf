package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	processingPrefix = "processing:"
	valueDone        = "done"
)

// DefaultProcessingTTL bounds how long a crashed processor can hold a key.
const DefaultProcessingTTL = 2 * time.Hour

// releaseScript deletes KEYS[1] only while it still holds this claim's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Store shared between processes. Each successful Acquire
// stores a fresh token, so a claim that expired and was taken over by
// another process is never released by the old holder.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisStore creates a store using client. Keys are namespaced with
// prefix; in-flight keys expire after ttl (DefaultProcessingTTL when zero).
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultProcessingTTL
	}
	if prefix == "" {
		prefix = "scenereel:request:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, tokens: make(map[string]string)}
}

// Acquire implements Store.
func (s *RedisStore) Acquire(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	token := processingPrefix + uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.prefix+key, token, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: acquire %s: %w", key, err)
	}
	if ok {
		s.mu.Lock()
		s.tokens[key] = token
		s.mu.Unlock()
	}
	return ok, nil
}

// Release implements Store. Only a claim taken by this store is released;
// a done key is left in place.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	token, ok := s.takeToken(key)
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, s.client, []string{s.prefix + key}, token).Err(); err != nil {
		return fmt.Errorf("idempotency: release %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) takeToken(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[key]
	delete(s.tokens, key)
	return token, ok
}

// Done implements Store.
func (s *RedisStore) Done(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.client.Set(ctx, s.prefix+key, valueDone, 0).Err(); err != nil {
		return fmt.Errorf("idempotency: done %s: %w", key, err)
	}
	s.takeToken(key)
	return nil
}

var _ Store = (*RedisStore)(nil)
