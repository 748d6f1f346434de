package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/middleware"
)

// Generate returns the handler for one operation kind. The closure binds the
// operation once at route registration; nothing downstream branches on the
// kind string again.
func (a *App) Generate(op domain.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale := middleware.LocaleFromContext(r.Context())

		caller, mode, err := a.Auth.Resolve(r.Context(), r.Header.Get("Authorization"), op.Capability())
		if err != nil {
			a.failForError(w, r, err)
			return
		}

		var in domain.GenerateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			a.fail(w, http.StatusBadRequest, message(locale, msgInvalidPayload), nil)
			return
		}
		if verr := op.ValidateInput(&in); verr != nil {
			a.failForError(w, r, verr)
			return
		}

		record, err := a.Pipeline.Run(r.Context(), caller, op, in)
		if err != nil {
			a.recordUsage(r, caller.ID, "generate_"+op.Kind(), mode, false, nil)
			a.failForError(w, r, err)
			return
		}

		a.recordUsage(r, caller.ID, "generate_"+op.Kind(), mode, true, map[string]any{
			"record_id":   record.ID,
			"credit_cost": record.CreditCost,
		})
		a.respond(w, http.StatusOK, message(locale, msgGenerationReady), record.PublicURL)
	}
}
