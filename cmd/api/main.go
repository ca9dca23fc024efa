package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"productsnap/internal/adapter/repo"
	"productsnap/internal/admission"
	"productsnap/internal/bootstrap"
	"productsnap/internal/http/handlers"
	httpapi "productsnap/internal/http/httpapi"
	"productsnap/internal/infra"
	"productsnap/internal/infra/geoip"
	"productsnap/internal/jobs"
	"productsnap/internal/ledger"
	"productsnap/internal/queue"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")
	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("invalid api configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	store, staticDir, err := bootstrap.Storage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer geo.Close()

	svc := jobs.NewService(jobs.Deps{
		Jobs:          repo.NewJobRepository(runner),
		Subscriptions: repo.NewSubscriptionRepository(runner),
		Audit:         repo.NewAuditRepository(runner),
		Admission:     admission.NewController(ledger.New(rdb), cfg.PlanLimits()),
		Queue:         queue.New(rdb, cfg.QueueName),
		Store:         store,
		GeoIP:         geo,
		Logger:        logger,
	})
	app := &handlers.App{
		Jobs: svc,
		Checks: map[string]handlers.HealthCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Logger:        logger,
		MaxUploadSize: cfg.MaxUploadSize,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  strings.Split(cfg.FrontendURL, ","),
		StaticDir:       staticDir,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().Msgf("API listening on %s", server.Addr())
	if err := server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
