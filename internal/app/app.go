package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/studygroups/internal/cache"
	"github.com/Freeeeeet/studygroups/internal/config"
	"github.com/Freeeeeet/studygroups/internal/controller"
	"github.com/Freeeeeet/studygroups/internal/notify"
	"github.com/Freeeeeet/studygroups/internal/repository"
	"github.com/Freeeeeet/studygroups/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Connect открывает пул соединений с Postgres и проверяет его
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// Migrate применяет миграции и выходит
func Migrate(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

// Serve поднимает HTTP API движка учебных групп и блокируется до отмены ctx
func Serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	err = migrator.Run(ctx)
	migrator.Close()
	if err != nil {
		return err
	}

	poolRepo := repository.NewPoolRepository(pool)
	stores := service.Stores{
		Pool:     poolRepo,
		Matches:  repository.NewMatchRepository(pool),
		Mastery:  repository.NewMasteryRepository(pool),
		Students: repository.NewStudentRepository(pool),
		Concepts: repository.NewConceptRepository(pool),
	}

	statusCache, closeCache := newStatusCache(ctx, cfg, logger)
	defer closeCache()
	notifier, waitNotifications := newNotifier(cfg, logger)
	defer waitNotifications()

	rnd := service.NewLockedRandom(time.Now().UnixNano())
	matcher := service.NewMatcher(
		stores,
		statusCache,
		notifier,
		service.NewMeetingLinks(cfg.MeetingBaseURL, rnd),
		rnd,
		logger.Named("matcher"),
	)
	groups := service.NewStudyGroupService(stores, matcher, statusCache, cfg.PoolTTL, logger.Named("study_groups"))
	status := service.NewStatusService(stores, statusCache, logger.Named("status"))

	if cfg.PoolSweepInterval > 0 {
		sweeper := NewSweeper(poolRepo, cfg.PoolSweepInterval, logger.Named("sweeper"))
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := controller.NewRouter(controller.NewStudyGroupHandler(groups, status, logger), logger.Named("http"))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// newStatusCache подключает Redis, а при его недоступности работает без кэша
func newStatusCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.StatusCache, func()) {
	if cfg.RedisURL == "" {
		logger.Info("No REDIS_URL set, running without status cache")
		return cache.Noop{}, func() {}
	}

	c, err := cache.NewRedisCache(ctx, cfg.RedisURL, logger.Named("cache"))
	if err != nil {
		logger.Warn("Redis unavailable, running without status cache", zap.Error(err))
		return cache.Noop{}, func() {}
	}

	logger.Info("Redis status cache connected")
	return c, func() { _ = c.Close() }
}

func newNotifier(cfg *config.Config, logger *zap.Logger) (service.MatchNotifier, func()) {
	if cfg.TelegramToken == "" {
		return notify.Noop{}, func() {}
	}

	n, err := notify.NewTelegramNotifier(cfg.TelegramToken, logger.Named("notify"))
	if err != nil {
		logger.Warn("Telegram unavailable, match notifications disabled", zap.Error(err))
		return notify.Noop{}, func() {}
	}

	return n, n.Wait
}
