package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-essam23/go-collab/internal/engine"
	"github.com/a-essam23/go-collab/internal/server/middleware"
	"github.com/a-essam23/go-collab/pkg/protocol"
	"github.com/go-chi/chi/v5"
)

type presenceResponse struct {
	SpaceID string              `json:"spaceId"`
	Users   []protocol.UserInfo `json:"users"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"connections": a.stateManager.ConnectionCount(),
	})
}

// handlePresence returns the current occupants of a space to a caller who
// could join it.
func (a *App) handlePresence(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	spaceID := chi.URLParam(r, "spaceID")

	if _, err := a.engine.Admit(r.Context(), spaceID, reqMeta.UserID); err != nil {
		status := statusFor(engine.KindOf(err))
		if status == http.StatusInternalServerError {
			a.logger.Error("Presence lookup failed", slog.String("spaceID", spaceID), slog.Any("error", err))
		}
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	writeJSON(w, http.StatusOK, presenceResponse{
		SpaceID: spaceID,
		Users:   a.engine.Roster(spaceID).Users,
	})
}

func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindAuthorization:
		return http.StatusForbidden
	case engine.KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
