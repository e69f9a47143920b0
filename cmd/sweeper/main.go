// Command sweeper evicts participants that missed the payment deadline.
// By default it schedules a pass every SWEEP_INTERVAL through asynq and
// processes the tasks itself; -once runs a single pass and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/config"
	"github.com/iliyamo/round-seat-reservation/internal/database"
	"github.com/iliyamo/round-seat-reservation/internal/queue"
	"github.com/iliyamo/round-seat-reservation/internal/repository"
	"github.com/iliyamo/round-seat-reservation/internal/service"
	"github.com/iliyamo/round-seat-reservation/internal/tasks"
)

func main() {
	once := flag.Bool("once", false, "run one sweep pass and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	logger := log.With().Str("module", "sweeper").Logger()
	if cfg.StoreDriver != config.StoreMySQL {
		logger.Fatal().Str("driver", cfg.StoreDriver).Msg("sweeper needs the mysql store")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	var (
		notifier service.Notifier
		pub      *queue.Publisher
	)
	if cfg.RabbitMQURL != "" {
		pub = queue.NewPublisher(cfg.RabbitMQURL, cfg.NotifyQueue, cfg.NotifyBuffer)
		notifier = pub
	}
	engine := service.New(repository.NewMySQLStore(db), cfg.Policy(), notifier, nil)

	if *once {
		evictions, err := engine.SweepNow(ctx)
		if pub != nil {
			pub.Flush(ctx)
		}
		var sweepErr *service.SweepError
		switch {
		case errors.As(err, &sweepErr):
			logger.Error().Int("evicted", len(evictions)).Int("failed", len(sweepErr.Rows)).Msg("sweep finished with failures")
			os.Exit(1)
		case err != nil:
			logger.Fatal().Err(err).Msg("sweep failed")
		}
		logger.Info().Int("evicted", len(evictions)).Msg("sweep finished")
		return
	}

	if pub != nil {
		go pub.Run(ctx)
	}

	redisOpt := cfg.Redis.AsynqRedis()
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := tasks.RegisterSchedule(scheduler, cfg.SweepInterval); err != nil {
		logger.Fatal().Err(err).Msg("failed to register schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Shutdown()

	worker := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{tasks.Queue: 1},
	})
	if err := worker.Start(tasks.NewMux(engine)); err != nil {
		logger.Fatal().Err(err).Msg("failed to start worker")
	}
	defer worker.Shutdown()

	logger.Info().Dur("interval", cfg.SweepInterval).Msg("sweeper running")
	<-ctx.Done()
	logger.Info().Msg("sweeper stopping")
}
