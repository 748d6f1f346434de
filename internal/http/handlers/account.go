package handlers

import (
	"net/http"

	"server/internal/middleware"
)

type accountResponse struct {
	ID                   string `json:"id"`
	Email                string `json:"email"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	CreditBalance        int    `json:"credit_balance"`
}

// Account returns the authenticated caller's profile and balance. Account
// data is session-only; API keys never see it.
func (a *App) Account(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	caller, err := a.Auth.ResolveSession(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		a.failForError(w, r, err)
		return
	}

	a.respond(w, http.StatusOK, message(locale, msgAccountLoaded), accountResponse{
		ID:                   caller.ID,
		Email:                caller.Email,
		NotificationsEnabled: caller.NotificationsEnabled,
		CreditBalance:        caller.CreditBalance,
	})
}
