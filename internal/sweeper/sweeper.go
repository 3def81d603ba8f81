// Package sweeper runs the active expiry reclaimer. It is an optimization
// layered on top of the registry's lazy sweep: without it expired locks are
// still reclaimed on the next operation, but lock.expired events would only
// go out when traffic happens to arrive.
package sweeper

import (
	"context"
	"time"

	"github.com/robertarktes/seat-reservation-service/internal/domain"
	"github.com/robertarktes/seat-reservation-service/internal/observability"
	"github.com/robertarktes/seat-reservation-service/internal/registry"
)

// EventPublisher is the slice of the rabbit publisher the sweeper needs.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, payload interface{}) error
}

type Sweeper struct {
	reg    *registry.Registry
	pub    EventPublisher
	logger observability.Logger
}

func New(reg *registry.Registry, pub EventPublisher, logger observability.Logger) *Sweeper {
	return &Sweeper{reg: reg, pub: pub, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := s.reg.SweepExpired()
			if len(expired) == 0 {
				continue
			}
			observability.LocksExpiredTotal.Add(float64(len(expired)))
			for _, seat := range expired {
				s.logger.WithField("seat_id", seat.ID).Info("lock expired")
				if err := s.publishExpiredWithRetry(ctx, seat); err != nil {
					s.logger.WithError(err).WithField("seat_id", seat.ID).Error("failed to publish lock.expired")
				}
			}
		}
	}
}

// NotifyExpired is the registry OnExpired hook for seats reclaimed by the
// lazy sweep inside regular operations. It runs on the request goroutine,
// so publishing (and its retry backoff) is dispatched off to the side; the
// caller must never wait on the broker.
func (s *Sweeper) NotifyExpired(expired []domain.Seat) {
	observability.LocksExpiredTotal.Add(float64(len(expired)))
	for _, seat := range expired {
		s.logger.WithField("seat_id", seat.ID).Info("lock expired")
	}
	if s.pub == nil {
		return
	}
	go func() {
		for _, seat := range expired {
			if err := s.publishExpiredWithRetry(context.Background(), seat); err != nil {
				s.logger.WithError(err).WithField("seat_id", seat.ID).Error("failed to publish lock.expired")
			}
		}
	}()
}

func (s *Sweeper) publishExpiredWithRetry(ctx context.Context, seat domain.Seat) error {
	if s.pub == nil {
		return nil
	}
	maxRetries := 3
	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.pub.PublishJSON(ctx, "lock.expired", map[string]interface{}{
			"seat_id": seat.ID,
		})
		if err == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
