package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"productsnap/internal/adapter/repo"
	"productsnap/internal/bootstrap"
	"productsnap/internal/infra"
	"productsnap/internal/infra/credentials"
	"productsnap/internal/ledger"
	"productsnap/internal/notify"
	"productsnap/internal/queue"
	"productsnap/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer rdb.Close()

	store, _, err := bootstrap.Storage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}
	generator, err := bootstrap.Generator(cfg, store, credentials.NewStore(runner), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure generation client")
	}

	dispatcher := notify.NewDispatcher(bootstrap.Notifier(cfg, logger), logger, 64)
	jobsRepo := repo.NewJobRepository(runner)
	q := queue.New(rdb, cfg.QueueName)
	counters := ledger.New(rdb)

	w := worker.New(worker.Deps{
		Source:    q,
		Jobs:      jobsRepo,
		Users:     repo.NewUserRepository(runner),
		Counter:   counters,
		Generator: generator,
		Store:     store,
		Notices:   dispatcher,
		Logger:    logger,
	}, worker.Options{
		IdleInterval:     cfg.WorkerIdleInterval,
		ErrorBackoff:     cfg.WorkerErrorBackoff,
		PollInterval:     cfg.GenerationPollInterval,
		MaxWait:          cfg.GenerationMaxWait,
		ThumbnailMaxSize: cfg.ThumbnailMaxSize,
	})
	reaper := worker.NewReaper(jobsRepo, q, counters, logger, worker.ReaperOptions{
		Interval:             cfg.ReaperInterval,
		StaleAfter:           cfg.ReaperStaleAfter,
		ReconcileConcurrency: cfg.ReaperReconcileConcurrency,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker: stopped with error")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("worker: notifications not fully drained")
	}
	logger.Info().Msg("worker: stopped")
}
