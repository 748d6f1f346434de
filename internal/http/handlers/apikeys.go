package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"
)

// API key management is session-only: a key must never be able to mint or
// revoke keys.

type createAPIKeyRequest struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

type apiKeyItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities"`
	Revoked      bool      `json:"revoked"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *App) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	caller, err := a.Auth.ResolveSession(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		a.failForError(w, r, err)
		return
	}

	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.fail(w, http.StatusBadRequest, message(locale, msgInvalidPayload), nil)
		return
	}
	if verr := validateAPIKeyRequest(&req); verr != nil {
		a.failForError(w, r, verr)
		return
	}

	secret := newAPIKeySecret()
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertAPIKey, caller.ID, req.Name, secret, req.Capabilities)
	var id string
	var createdAt time.Time
	if err := row.Scan(&id, &createdAt); err != nil {
		// Secret collision; retry once with a fresh secret.
		if infra.IsUniqueViolation(err) {
			secret = newAPIKeySecret()
			row = a.SQL.QueryRow(r.Context(), sqlinline.QInsertAPIKey, caller.ID, req.Name, secret, req.Capabilities)
			err = row.Scan(&id, &createdAt)
		}
		if err != nil {
			a.failForError(w, r, domain.Internal("create-api-key", err))
			return
		}
	}

	// The secret is returned exactly once; only its lookup value is stored.
	a.respond(w, http.StatusCreated, message(locale, msgAPIKeyCreated), map[string]any{
		"id":           id,
		"name":         req.Name,
		"secret":       secret,
		"capabilities": req.Capabilities,
		"created_at":   createdAt,
	})
}

func (a *App) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	caller, err := a.Auth.ResolveSession(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		a.failForError(w, r, err)
		return
	}

	rows, err := a.SQL.Query(r.Context(), sqlinline.QListAPIKeysByProfile, caller.ID)
	if err != nil {
		a.failForError(w, r, domain.Internal("list-api-keys", err))
		return
	}
	defer rows.Close()

	items := []apiKeyItem{}
	for rows.Next() {
		var item apiKeyItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Capabilities, &item.Revoked, &item.CreatedAt); err != nil {
			a.failForError(w, r, domain.Internal("list-api-keys", err))
			return
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		a.failForError(w, r, domain.Internal("list-api-keys", err))
		return
	}

	a.respond(w, http.StatusOK, message(locale, msgAPIKeysListed), map[string]any{"items": items})
}

func (a *App) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	caller, err := a.Auth.ResolveSession(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		a.failForError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		a.failForError(w, r, domain.ErrNotFound)
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QRevokeAPIKey, id, caller.ID)
	var revokedID string
	if err := row.Scan(&revokedID); err != nil {
		if infra.IsNoRows(err) {
			a.failForError(w, r, domain.ErrNotFound)
			return
		}
		a.failForError(w, r, domain.Internal("revoke-api-key", err))
		return
	}

	a.respond(w, http.StatusOK, message(locale, msgAPIKeyRevoked), nil)
}

func validateAPIKeyRequest(req *createAPIKeyRequest) *domain.ValidationError {
	fields := map[string]string{}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		fields["name"] = "is required"
	} else if len(req.Name) > 100 {
		fields["name"] = "must be at most 100 characters"
	}
	if len(req.Capabilities) == 0 {
		fields["capabilities"] = "at least one capability is required"
	}
	for _, capability := range req.Capabilities {
		switch capability {
		case domain.CapabilityCreateImage, domain.CapabilityGetImage:
		default:
			fields["capabilities"] = "unknown capability " + capability
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// newAPIKeySecret mints a key in the sk_ prefix convention the resolver
// keys off.
func newAPIKeySecret() string {
	raw := uuid.NewString() + uuid.NewString()
	return "sk_" + strings.ReplaceAll(raw, "-", "")
}
