package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript удаляет ключ, только если значение совпадает
// с токеном держателя: истёкшую и перехваченную другим процессом
// блокировку снимать нельзя.
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	else
		return 0
	end`

// RedisProvider — Provider поверх Redis (SET NX + TTL).
type RedisProvider struct {
	rdb *redis.Client
}

// NewRedisProvider создаёт RedisProvider.
func NewRedisProvider(rdb *redis.Client) *RedisProvider {
	return &RedisProvider{rdb: rdb}
}

// TryAcquire пытается захватить блокировку без ожидания.
func (p *RedisProvider) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Token, error) {
	value := uuid.New().String()

	ok, err := p.rdb.SetNX(ctx, name, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx %q: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &Token{Name: name, Value: value}, nil
}

// Release снимает блокировку, если её ещё держит token.
func (p *RedisProvider) Release(ctx context.Context, token *Token) error {
	if token == nil {
		return nil
	}
	if err := p.rdb.Eval(ctx, releaseScript, []string{token.Name}, token.Value).Err(); err != nil {
		return fmt.Errorf("release %q: %w", token.Name, err)
	}
	return nil
}
