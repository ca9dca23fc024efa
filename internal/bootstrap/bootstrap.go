// Package bootstrap builds the configured collaborators shared by the
// binaries.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog"

	"productsnap/internal/infra"
	"productsnap/internal/infra/credentials"
	"productsnap/internal/notify"
	"productsnap/internal/providers/generation"
	"productsnap/internal/storage"
	"productsnap/internal/storage/s3store"
)

// Storage returns the configured asset store. For the local driver the
// absolute storage directory is returned as well so the API can serve it.
func Storage(ctx context.Context, cfg *infra.Config) (storage.Storage, string, error) {
	switch cfg.StorageDriver {
	case "s3":
		store, err := s3store.New(ctx, s3store.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, "", fmt.Errorf("configure s3 storage: %w", err)
		}
		return store, "", nil
	default:
		path := cfg.StoragePath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		store, err := storage.NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("configure local storage: %w", err)
		}
		return store, store.BasePath(), nil
	}
}

// Generator returns the mock or live generation client. The live client
// reads its API key from the environment first and the credential store
// second, and hands the backend signed input URLs.
func Generator(cfg *infra.Config, store storage.Storage, keys *credentials.Store, logger zerolog.Logger) (generation.Client, error) {
	if cfg.GenerationMode != "live" {
		logger.Info().Msg("generation: using mock backend")
		return generation.NewMockClient(logger), nil
	}
	apiKey := func(context.Context) (string, error) { return cfg.GenerationAPIKey, nil }
	if keys != nil {
		apiKey = keys.KeyFunc(cfg.GenerationAPIKey)
	}
	return generation.NewLiveClient(generation.LiveOptions{
		BaseURL: cfg.GenerationAPIURL,
		APIKey:  apiKey,
		InputURL: func(ctx context.Context, locator string) (string, error) {
			return store.SignedURL(ctx, locator, cfg.GenerationMaxWait+cfg.GenerationTimeout)
		},
		HTTPClient: &http.Client{Timeout: cfg.GenerationTimeout},
		Logger:     logger,
	})
}

// Notifier mails completion notices when SMTP is configured and logs them
// otherwise.
func Notifier(cfg *infra.Config, logger zerolog.Logger) notify.Notifier {
	if cfg.SMTPHost == "" {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSMTPNotifier(notify.SMTPOptions{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		FrontendURL: cfg.FrontendURL,
	})
}
