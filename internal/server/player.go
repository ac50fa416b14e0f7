package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talevox/talevox/internal/history"
)

// createPlayerRequest is the JSON body of POST /players.
type createPlayerRequest struct {
	PlayerID string `json:"player_id"`
}

// handleCreatePlayer registers a player explicitly. Players are also
// registered lazily by their first interaction, so this mainly exists for
// pre-provisioning.
func (s *Server) handleCreatePlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createPlayerRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "player_id must not be empty")
			return
		}

		err := s.players.CreatePlayer(r.Context(), body.PlayerID)
		switch {
		case errors.Is(err, history.ErrPlayerExists):
			writeError(w, http.StatusConflict, "player already exists")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusCreated, map[string]string{"player_id": body.PlayerID})
		}
	}
}

// handleListPlayers returns all registered player identifiers.
func (s *Server) handleListPlayers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := s.players.ListPlayers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"players": ids})
	}
}

// handlePlayerHistory returns the player's full conversation log grouped by
// NPC, 404 for an unregistered player.
func (s *Server) handlePlayerHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log, err := s.players.PlayerHistory(r.Context(), id)
		switch {
		case errors.Is(err, history.ErrPlayerNotFound):
			writeError(w, http.StatusNotFound, "player not found")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"player_id": id,
				"history":   log,
			})
		}
	}
}
