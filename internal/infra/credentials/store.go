// Package credentials keeps provider API tokens in the integration_tokens
// table so operators can rotate them without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"studio/internal/infra"
	"studio/internal/sqlinline"
)

const (
	ProviderRunDiffusion = "rundiffusion"
	ProviderHuggingFace  = "huggingface"
)

// Providers lists the token names the store accepts.
func Providers() []string {
	return []string{ProviderRunDiffusion, ProviderHuggingFace}
}

func known(provider string) bool {
	for _, p := range Providers() {
		if p == provider {
			return true
		}
	}
	return false
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored token for provider, or "" when none is set.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: select %s: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers a configured value and falls back to the stored token.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	if !known(provider) {
		return fmt.Errorf("credentials: unknown provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credentials: %s token is required", provider)
	}
	return s.upsert(ctx, provider, token, map[string]any{"source": "cli"})
}

func (s *Store) DeleteToken(ctx context.Context, provider string) error {
	if !known(provider) {
		return fmt.Errorf("credentials: unknown provider %q", provider)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QDeleteIntegrationToken, provider); err != nil {
		return fmt.Errorf("credentials: delete %s: %w", provider, err)
	}
	return nil
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
		return fmt.Errorf("credentials: upsert %s: %w", provider, err)
	}
	return nil
}
