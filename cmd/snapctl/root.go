package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"productsnap/internal/infra"
)

// env holds lazily opened connections shared by subcommands.
type env struct {
	cfg    *infra.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
}

func (e *env) load() error {
	if e.cfg != nil {
		return nil
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = infra.NewLogger(cfg.AppEnv, "snapctl").Level(zerolog.WarnLevel)
	return nil
}

func (e *env) sql(ctx context.Context) (*infra.SQLRunner, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	if e.pool == nil {
		pool, err := infra.NewDBPool(ctx, e.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		e.pool = pool
	}
	return infra.NewSQLRunner(e.pool, e.logger), nil
}

func (e *env) redis(ctx context.Context) (*redis.Client, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	if e.rdb == nil {
		rdb, err := infra.NewRedisClient(ctx, e.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		e.rdb = rdb
	}
	return e.rdb, nil
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "snapctl",
		Short:         "Operate the product photo pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}
	root.AddCommand(
		planCmd(e),
		queueCmd(e),
		reapCmd(e),
		apikeyCmd(e),
		userCmd(e),
	)
	return root
}
