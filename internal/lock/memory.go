package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryProvider — Provider в памяти процесса.
// Для тестов и запусков в один процесс, где общее хранилище не нужно.
type MemoryProvider struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

type memoryLock struct {
	value     string
	expiresAt time.Time
}

// NewMemoryProvider создаёт MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{locks: make(map[string]memoryLock)}
}

// TryAcquire пытается захватить блокировку без ожидания.
func (p *MemoryProvider) TryAcquire(_ context.Context, name string, ttl time.Duration) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if held, ok := p.locks[name]; ok && now.Before(held.expiresAt) {
		return nil, nil
	}

	value := uuid.New().String()
	p.locks[name] = memoryLock{value: value, expiresAt: now.Add(ttl)}
	return &Token{Name: name, Value: value}, nil
}

// Release снимает блокировку, если её ещё держит token.
func (p *MemoryProvider) Release(_ context.Context, token *Token) error {
	if token == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if held, ok := p.locks[token.Name]; ok && held.value == token.Value {
		delete(p.locks, token.Name)
	}
	return nil
}
