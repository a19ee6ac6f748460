package lock

import (
	"context"
	"time"
)

// Token — выданная блокировка.
// Value уникален для каждого захвата: release снимает блокировку
// только если её всё ещё держит этот токен.
type Token struct {
	Name  string
	Value string
}

// Provider — именованная нераспределяющая блокировка с TTL
// поверх общего хранилища.
//
// TryAcquire никогда не ждёт: nil-токен означает «занято».
// TTL страхует от упавшего держателя, который не вызвал Release.
type Provider interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Token, error)
	Release(ctx context.Context, token *Token) error
}
