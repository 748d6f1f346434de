package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"server/internal/infra"
	"server/internal/sqlinline"
)

const (
	ProviderInference = "inference"
	ProviderMail      = "mail"
)

// Store reads and writes third-party API credentials kept in the database.
// Environment variables win; the store is the fallback for deployments that
// rotate keys without restarts.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) InferenceAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderInference)
}

func (s *Store) MailAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderMail)
}

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

func (s *Store) SetInferenceAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("inference api key is required")
	}
	return s.upsert(ctx, ProviderInference, key, nil)
}

func (s *Store) SetMailAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("mail api key is required")
	}
	return s.upsert(ctx, ProviderMail, key, nil)
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
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
