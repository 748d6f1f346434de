package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/auth"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"
	"server/internal/storage"
)

// GenerationRunner executes one generation request end to end.
type GenerationRunner interface {
	Run(ctx context.Context, caller domain.Caller, op domain.Operation, in domain.GenerateInput) (*domain.GenerationRecord, error)
}

// App bundles the dependencies shared by the HTTP handlers.
type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	SQL      infra.SQLExecutor
	Auth     *auth.Resolver
	Pipeline GenerationRunner
	Store    *storage.FileStore
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) respond(w http.ResponseWriter, code int, message string, data any) {
	a.json(w, code, envelope{Success: true, Message: message, Data: data})
}

func (a *App) fail(w http.ResponseWriter, code int, message string, data any) {
	a.json(w, code, envelope{Success: false, Message: message, Data: data})
}

// failForError maps a typed pipeline error onto the wire contract: 400 for
// validation, credit and moderation refusals, 401 for credential problems,
// 404 for missing resources and a generic 500 for everything else. Internal
// detail goes to the log sink only.
func (a *App) failForError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		a.fail(w, http.StatusBadRequest, message(locale, msgValidationFailed), validation.Fields)
		return
	}
	var unsafe *domain.UnsafeContentError
	if errors.As(err, &unsafe) {
		// The moderation message is surfaced verbatim; it is the one
		// provider string callers are allowed to see.
		a.fail(w, http.StatusBadRequest, unsafe.Error(), nil)
		return
	}
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.fail(w, http.StatusBadRequest, message(locale, msgInsufficientCredits), nil)
	case errors.Is(err, domain.ErrUnauthorized):
		a.fail(w, http.StatusUnauthorized, message(locale, msgUnauthorized), nil)
	case errors.Is(err, domain.ErrNotFound):
		a.fail(w, http.StatusNotFound, message(locale, msgNotFound), nil)
	default:
		var internal *domain.InternalError
		if errors.As(err, &internal) {
			a.Logger.Error().Err(internal.Err).Str("stage", internal.Stage).Msg("request failed")
		} else {
			a.Logger.Error().Err(err).Msg("request failed")
		}
		a.fail(w, http.StatusInternalServerError, message(locale, msgInternalError), nil)
	}
}

// recordUsage writes a best-effort audit row for an authenticated request.
// Audit failures are logged, never surfaced.
func (a *App) recordUsage(r *http.Request, profileID, eventType string, mode auth.Mode, success bool, props map[string]any) {
	var properties []byte
	if len(props) > 0 {
		properties, _ = json.Marshal(props)
	}
	country := middleware.CountryFromContext(r.Context())
	_, err := a.SQL.Exec(context.WithoutCancel(r.Context()), sqlinline.QInsertUsageEvent,
		profileID, eventType, string(mode), country, success, properties)
	if err != nil {
		a.Logger.Warn().Err(err).Str("event_type", eventType).Msg("usage event insert failed")
	}
}
