package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StalePoolExpirer переводит просроченные ожидающие записи в expired
type StalePoolExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper периодически чистит пул от просроченных записей.
// Подбор пар и так игнорирует просроченные записи; чистка лишь приводит
// статусы в хранилище в соответствие с этим.
type Sweeper struct {
	pool     StalePoolExpirer
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewSweeper создаёт чистильщик пула
func NewSweeper(pool StalePoolExpirer, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		pool:     pool,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновую задачу
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting pool sweeper", zap.Duration("interval", s.interval))

	go s.run(ctx)
}

// Stop останавливает фоновую задачу и ждёт её завершения
func (s *Sweeper) Stop() {
	s.logger.Info("Stopping pool sweeper")
	close(s.stopChan)
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Pool sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Pool sweeper cancelled")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.pool.ExpireStale(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to expire stale pool entries", zap.Error(err))
		return
	}

	if expired > 0 {
		s.logger.Info("Expired stale pool entries", zap.Int64("count", expired))
	}
}
