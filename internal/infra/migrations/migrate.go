package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // database/sql driver for goose
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var files embed.FS

const dir = "sql"

// Open connects the database/sql handle goose needs.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func prepare(logger zerolog.Logger) error {
	goose.SetBaseFS(files)
	goose.SetLogger(gooseLogger{logger: logger})
	return goose.SetDialect("postgres")
}

// Up applies every pending migration. A nil database is a no-op.
func Up(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	if db == nil {
		return nil
	}
	if err := prepare(logger); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	if err := prepare(logger); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, dir)
}

// Status logs the applied state of every migration.
func Status(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	if err := prepare(logger); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, dir)
}

type gooseLogger struct {
	logger zerolog.Logger
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Fatal().Msgf(strings.TrimSpace(format), v...)
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Info().Msgf(strings.TrimSpace(format), v...)
}
