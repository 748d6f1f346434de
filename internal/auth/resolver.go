package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

const (
	bearerPrefix = "Bearer "

	sessionIssuer = "imagestudio"
)

// Resolver turns an Authorization header into a caller identity. Two modes
// exist, selected by prefix convention: a bearer-prefixed value is treated
// as an API key, anything else as a session token. Both converge on the
// same domain.Caller shape.
//
// Data-fetch failures are logged with full detail but reported to the
// caller as a plain unauthorized, so the response does not leak which
// check failed.
type Resolver struct {
	SQL    infra.SQLExecutor
	Secret string
	Logger zerolog.Logger
}

func NewResolver(sql infra.SQLExecutor, secret string, logger zerolog.Logger) *Resolver {
	return &Resolver{SQL: sql, Secret: secret, Logger: logger}
}

// Mode labels how a request authenticated, for audit logs.
type Mode string

const (
	ModeSession Mode = "session"
	ModeAPIKey  Mode = "api_key"
)

// Resolve authenticates the header and checks that the credential carries
// the given capability. Session tokens imply every capability.
func (r *Resolver) Resolve(ctx context.Context, authHeader, capability string) (domain.Caller, Mode, error) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return domain.Caller{}, "", domain.ErrUnauthorized
	}
	if strings.HasPrefix(authHeader, bearerPrefix) {
		caller, err := r.resolveAPIKey(ctx, strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix)), capability)
		return caller, ModeAPIKey, err
	}
	caller, err := r.ResolveSession(ctx, authHeader)
	return caller, ModeSession, err
}

// ResolveSession authenticates a session token, rejecting API keys. Used by
// the account-management surface, which is session-only.
func (r *Resolver) ResolveSession(ctx context.Context, token string) (domain.Caller, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), bearerPrefix))
	if token == "" {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	subject, err := verifySession(r.Secret, token)
	if err != nil {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	return r.loadCaller(ctx, subject)
}

func (r *Resolver) resolveAPIKey(ctx context.Context, secret, capability string) (domain.Caller, error) {
	if secret == "" {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	row := r.SQL.QueryRow(ctx, sqlinline.QSelectAPIKey, secret)
	var key domain.APIKey
	if err := row.Scan(&key.ID, &key.ProfileID, &key.Name, &key.Capabilities, &key.Revoked); err != nil {
		if !infra.IsNoRows(err) {
			r.Logger.Error().Err(err).Msg("api key lookup failed")
		}
		return domain.Caller{}, domain.ErrUnauthorized
	}
	if key.Revoked {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	if !domain.HasCapability(key.Capabilities, capability) {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	return r.loadCaller(ctx, key.ProfileID)
}

func (r *Resolver) loadCaller(ctx context.Context, profileID string) (domain.Caller, error) {
	row := r.SQL.QueryRow(ctx, sqlinline.QSelectCallerByProfile, profileID)
	var caller domain.Caller
	if err := row.Scan(&caller.ID, &caller.Email, &caller.NotificationsEnabled, &caller.CreditBalance); err != nil {
		if !infra.IsNoRows(err) {
			r.Logger.Error().Err(err).Str("profile_id", profileID).Msg("caller lookup failed")
		}
		return domain.Caller{}, domain.ErrUnauthorized
	}
	return caller, nil
}

// SignSession mints an HS256 session token for the given profile. Production
// tokens come from the hosted auth provider sharing the same secret; this is
// used by tooling and tests.
func SignSession(secret, profileID string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   profileID,
		Issuer:    sessionIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func verifySession(secret, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid session token")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("session token missing subject")
	}
	return subject, nil
}
