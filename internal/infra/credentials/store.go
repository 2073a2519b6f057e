// Package credentials keeps provider tokens that are not supplied through
// the environment in the integration_tokens table.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"shaggydog/internal/infra"
	"shaggydog/internal/sqlinline"
)

const (
	ProviderOpenAI    = "openai"
	ProviderReplicate = "replicate"
)

// Providers lists the providers whose tokens may be stored.
var Providers = []string{ProviderOpenAI, ProviderReplicate}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Supported reports whether provider is a known token slot.
func Supported(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// Token returns the stored token, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !Supported(provider) {
		return fmt.Errorf("credentials: unsupported provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credentials: %s token is required", provider)
	}
	return s.upsert(ctx, provider, token, map[string]any{"source": "providerkey"})
}

// FillConfig loads stored tokens for every provider whose key the
// environment left empty. Lookup failures are logged and skipped.
func (s *Store) FillConfig(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) {
	slots := map[string]*string{
		ProviderOpenAI:    &cfg.OpenAIAPIKey,
		ProviderReplicate: &cfg.ReplicateAPIToken,
	}
	for _, provider := range Providers {
		slot := slots[provider]
		if *slot != "" {
			continue
		}
		token, err := s.Token(ctx, provider)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("stored token lookup failed")
			continue
		}
		if token != "" {
			*slot = token
			logger.Info().Str("provider", provider).Msg("using stored provider token")
		}
	}
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw); err != nil {
		return fmt.Errorf("credentials: store %s token: %w", provider, err)
	}
	return nil
}
