package chips

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers finished chips so a re-run can skip them
type Ledger interface {
	Done(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// MemoryLedger is a process-local Ledger
type MemoryLedger struct {
	mu   sync.Mutex
	done map[string]bool
}

// NewMemoryLedger returns an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{done: make(map[string]bool)}
}

func (l *MemoryLedger) Done(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done[key], nil
}

func (l *MemoryLedger) Mark(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done[key] = true
	return nil
}

// RedisLedger keeps finished chips in a Redis set
type RedisLedger struct {
	client *redis.Client
	set    string
}

// NewRedisLedger connects to addr and uses set to hold chip keys
func NewRedisLedger(ctx context.Context, addr, password, set string) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", addr, err)
	}
	return &RedisLedger{client: client, set: set}, nil
}

func (l *RedisLedger) Done(ctx context.Context, key string) (bool, error) {
	return l.client.SIsMember(ctx, l.set, key).Result()
}

func (l *RedisLedger) Mark(ctx context.Context, key string) error {
	return l.client.SAdd(ctx, l.set, key).Err()
}

// Close closes the Redis client
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
