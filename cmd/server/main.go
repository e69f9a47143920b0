package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/cache"
	"github.com/iliyamo/round-seat-reservation/internal/config"
	"github.com/iliyamo/round-seat-reservation/internal/database"
	"github.com/iliyamo/round-seat-reservation/internal/handler"
	"github.com/iliyamo/round-seat-reservation/internal/middleware"
	"github.com/iliyamo/round-seat-reservation/internal/queue"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
	"github.com/iliyamo/round-seat-reservation/internal/repository/memory"
	"github.com/iliyamo/round-seat-reservation/internal/router"
	"github.com/iliyamo/round-seat-reservation/internal/service"
	"github.com/iliyamo/round-seat-reservation/internal/tasks"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger := log.With().Str("module", "main").Logger()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer closeStore()

	rdb := config.NewRedisClient(cfg.Redis) // nil when Redis is unreachable
	if rdb != nil {
		defer rdb.Close()
	}

	var roomCache service.RoomCache
	if rc := cache.NewRoomViews(cfg.RoomCache, rdb); rc != nil {
		roomCache = rc
	}

	var notifier service.Notifier
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, cfg.NotifyQueue, cfg.NotifyBuffer)
		go pub.Run(ctx)
		notifier = pub
		go func() {
			if err := queue.StartNotificationConsumer(ctx, cfg.RabbitMQURL, cfg.NotifyQueue); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("notification consumer stopped")
			}
		}()
	} else {
		logger.Warn().Msg("RABBITMQ_URL not set, notifications are discarded")
	}

	engine := service.New(store, cfg.Policy(), notifier, roomCache)

	// The in-process store cannot be shared with a separate sweeper, so
	// it gets an in-process scheduler; with MySQL and Redis the sweep
	// runs through asynq.
	switch {
	case cfg.StoreDriver == config.StoreMemory:
		go sweepLoop(ctx, engine, cfg.SweepInterval)
	case rdb != nil:
		stop, err := startSweepScheduler(cfg, engine)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start sweep scheduler")
		}
		defer stop()
	default:
		logger.Warn().Msg("Redis unavailable, sweep must run via cmd/sweeper")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	router.RegisterRoutes(e)
	router.RegisterRounds(e, handler.NewRoundHandler(engine), cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb))

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
}

func openStore(cfg config.Config) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		return memory.New(), func() {}, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewMySQLStore(db), func() { _ = db.Close() }, nil
}

func sweepLoop(ctx context.Context, engine *service.Engine, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// Failures are logged per row by the engine.
			_, _ = engine.SweepNow(ctx)
		}
	}
}

// startSweepScheduler runs the asynq scheduler and a worker on the
// rounds queue inside the API process.
func startSweepScheduler(cfg config.Config, engine *service.Engine) (func(), error) {
	redisOpt := cfg.Redis.AsynqRedis()
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := tasks.RegisterSchedule(scheduler, cfg.SweepInterval); err != nil {
		return nil, err
	}
	if err := scheduler.Start(); err != nil {
		return nil, err
	}
	worker := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{tasks.Queue: 1},
	})
	if err := worker.Start(tasks.NewMux(engine)); err != nil {
		scheduler.Shutdown()
		return nil, err
	}
	return func() {
		scheduler.Shutdown()
		worker.Shutdown()
	}, nil
}
