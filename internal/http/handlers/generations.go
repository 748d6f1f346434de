package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"
	"server/internal/storage"
	"server/pkg/zip"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type generationItem struct {
	ID                  string    `json:"id"`
	PublicURL           string    `json:"public_url"`
	Prompt              string    `json:"prompt,omitempty"`
	AspectRatio         string    `json:"aspect_ratio,omitempty"`
	Kind                string    `json:"kind"`
	Style               string    `json:"style,omitempty"`
	SourceImageURL      string    `json:"source_image_url,omitempty"`
	SourceImageStrength float64   `json:"source_image_strength,omitempty"`
	Scale               int       `json:"scale,omitempty"`
	CreditCost          int       `json:"credit_cost"`
	CreatedAt           time.Time `json:"created_at"`
}

// ListGenerations returns the caller's generation history, newest first.
// Available to sessions and to API keys scoped with the get-image capability.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	caller, _, err := a.Auth.Resolve(r.Context(), r.Header.Get("Authorization"), domain.CapabilityGetImage)
	if err != nil {
		a.failForError(w, r, err)
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}

	rows, err := a.SQL.Query(r.Context(), sqlinline.QListGenerationsByOwner, caller.ID, limit)
	if err != nil {
		a.failForError(w, r, domain.Internal("list-generations", err))
		return
	}
	defer rows.Close()

	items := []generationItem{}
	for rows.Next() {
		var item generationItem
		var storageKey string
		if err := rows.Scan(&item.ID, &item.PublicURL, &storageKey, &item.Prompt, &item.AspectRatio,
			&item.Kind, &item.Style, &item.SourceImageURL, &item.SourceImageStrength,
			&item.Scale, &item.CreditCost, &item.CreatedAt); err != nil {
			a.failForError(w, r, domain.Internal("list-generations", err))
			return
		}
		item.PublicURL = storage.RewriteBase(item.PublicURL, a.Config.StorageBaseURL, a.Config.PublicAssetBaseURL)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		a.failForError(w, r, domain.Internal("list-generations", err))
		return
	}

	a.respond(w, http.StatusOK, message(locale, msgGenerationsListed), map[string]any{"items": items})
}

// DeleteGeneration removes a record and its stored artifact. Destructive, so
// session-only.
func (a *App) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
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

	row := a.SQL.QueryRow(r.Context(), sqlinline.QDeleteGeneration, id, caller.ID)
	var storageKey string
	if err := row.Scan(&storageKey); err != nil {
		if infra.IsNoRows(err) {
			a.failForError(w, r, domain.ErrNotFound)
			return
		}
		a.failForError(w, r, domain.Internal("delete-generation", err))
		return
	}

	// The record is gone either way; a failed object delete only leaves an
	// orphan for the sweep.
	if err := a.Store.Delete(r.Context(), storageKey); err != nil {
		a.Logger.Warn().Err(err).Str("key", storageKey).Msg("artifact delete failed")
	}

	a.respond(w, http.StatusOK, message(locale, msgGenerationDeleted), nil)
}

// ExportGenerations streams the caller's artifacts as a zip archive.
func (a *App) ExportGenerations(w http.ResponseWriter, r *http.Request) {
	caller, err := a.Auth.ResolveSession(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		a.failForError(w, r, err)
		return
	}

	rows, err := a.SQL.Query(r.Context(), sqlinline.QListGenerationsByOwner, caller.ID, maxListLimit)
	if err != nil {
		a.failForError(w, r, domain.Internal("export-generations", err))
		return
	}
	defer rows.Close()

	var entries []zip.Entry
	for rows.Next() {
		var item generationItem
		var storageKey string
		if err := rows.Scan(&item.ID, &item.PublicURL, &storageKey, &item.Prompt, &item.AspectRatio,
			&item.Kind, &item.Style, &item.SourceImageURL, &item.SourceImageStrength,
			&item.Scale, &item.CreditCost, &item.CreatedAt); err != nil {
			a.failForError(w, r, domain.Internal("export-generations", err))
			return
		}
		data, err := a.Store.Read(r.Context(), storageKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", storageKey).Msg("export skipping unreadable artifact")
			continue
		}
		entries = append(entries, zip.Entry{Name: item.ID + path.Ext(storageKey), Data: data})
	}
	if err := rows.Err(); err != nil {
		a.failForError(w, r, domain.Internal("export-generations", err))
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.failForError(w, r, domain.Internal("export-generations", err))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=generations-%s.zip", caller.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
