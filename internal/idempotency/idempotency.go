package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/seat-reservation-service/internal/adapters/redis"
)

// Idempotency replays stored responses for repeated POSTs carrying the same
// Idempotency-Key. With a nil store it is a no-op, so the service runs
// without redis.
type Idempotency struct {
	store *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(store *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	if i == nil || i.store == nil || key == "" {
		return nil, nil
	}
	resp, err := i.store.Get(ctx, key)
	if err != nil || resp == nil {
		return nil, err
	}
	return &Response{Status: resp.Status, Result: resp.Result}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	if i == nil || i.store == nil || key == "" {
		return nil
	}
	return i.store.Set(ctx, key, redisadapter.IdempResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
}
