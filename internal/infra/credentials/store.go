package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"productsnap/internal/infra"
	"productsnap/internal/sqlinline"
)

// ProviderGeneration names the image-generation backend's token row.
const ProviderGeneration = "generation"

var ErrEmptyToken = errors.New("credentials: token is required")

// Store keeps third-party API tokens in the integration_tokens table so they
// can be rotated without redeploying workers.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the trimmed token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores token for provider along with free-form properties.
func (s *Store) SetToken(ctx context.Context, provider, token string, props map[string]any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, strings.TrimSpace(provider), token, raw)
	return err
}

func (s *Store) GenerationAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGeneration)
}

func (s *Store) SetGenerationAPIKey(ctx context.Context, key string) error {
	return s.SetToken(ctx, ProviderGeneration, key, nil)
}

// KeyFunc resolves the generation key at call time. A non-empty fallback wins
// so an environment variable overrides the stored token.
func (s *Store) KeyFunc(fallback string) func(context.Context) (string, error) {
	fallback = strings.TrimSpace(fallback)
	return func(ctx context.Context) (string, error) {
		if fallback != "" {
			return fallback, nil
		}
		return s.GenerationAPIKey(ctx)
	}
}
