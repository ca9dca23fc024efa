package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"productsnap/internal/infra"
	"productsnap/internal/infra/migrations"
)

func main() {
	_ = godotenv.Load()
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status]")
	}
	flag.Parse()
	direction := "up"
	if flag.NArg() > 0 {
		direction = flag.Arg(0)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv, "migrate")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := migrations.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: open database")
	}
	defer db.Close()

	switch direction {
	case "up":
		err = migrations.Up(ctx, db, logger)
	case "down":
		err = migrations.Down(ctx, db, logger)
	case "status":
		err = migrations.Status(ctx, db, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("direction", direction).Msg("migrate: failed")
	}
	logger.Info().Str("direction", direction).Msg("migrate: done")
}
