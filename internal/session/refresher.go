package session

import (
	"context"

	"go.uber.org/zap"

	"membership/internal/queue"
)

// Refresher keeps the cache coherent with ledger writes by consuming change
// notifications.
type Refresher struct {
	cache *Cache
	queue queue.Queue
	log   *zap.Logger
}

func NewRefresher(c *Cache, q queue.Queue, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{cache: c, queue: q, log: log.Named("refresher")}
}

// Run consumes until ctx is cancelled or the queue closes.
func (r *Refresher) Run(ctx context.Context) error {
	msgs, err := r.queue.Consume(ctx)
	if err != nil {
		return err
	}
	r.log.Info("refresher started")
	for msg := range msgs {
		r.Handle(ctx, msg)
	}
	r.log.Info("refresher stopped")
	return ctx.Err()
}

// Handle applies one notification.
func (r *Refresher) Handle(ctx context.Context, msg queue.Message) {
	switch msg.Type {
	case queue.TypeMemberChanged:
		if roll, ok := msg.Roll(); ok {
			if err := r.cache.DropProfile(ctx, roll); err != nil {
				r.log.Warn("drop profile failed", zap.Int("roll_no", roll), zap.Error(err))
			}
		}
	case queue.TypeExpensesChanged, queue.TypeCacheRefresh:
	default:
		r.log.Debug("ignoring message", zap.String("type", msg.Type))
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.log.Warn("invalidate snapshot failed", zap.Error(err))
		return
	}
	if _, err := r.cache.Refresh(ctx); err != nil {
		r.log.Warn("snapshot rewarm failed", zap.String("type", msg.Type), zap.Error(err))
	}
}
