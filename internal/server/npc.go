package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talevox/talevox/internal/persona"
)

// createNPCRequest is the JSON body of POST /npcs.
type createNPCRequest struct {
	NPCID       string `json:"npc_id"`
	Description string `json:"description"`
	VoiceID     string `json:"voice_id,omitempty"`
}

// handleCreateNPC registers a new NPC persona.
func (s *Server) handleCreateNPC() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createNPCRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		p := &persona.Persona{
			ID:          body.NPCID,
			Description: body.Description,
			VoiceID:     body.VoiceID,
		}
		if err := p.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		err := s.personas.Create(r.Context(), p)
		switch {
		case errors.Is(err, persona.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "npc already exists")
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusCreated, p)
		}
	}
}

// handleListNPCs returns all registered personas.
func (s *Server) handleListNPCs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personas, err := s.personas.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, personas)
	}
}

// handleGetNPC returns one persona, 404 when the identifier is unknown.
func (s *Server) handleGetNPC() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, err := s.personas.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, "npc not found")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// updateDescriptionRequest is the JSON body of PUT /npcs/{id}/description.
type updateDescriptionRequest struct {
	Description string `json:"description"`
}

// handleUpdateDescription replaces an NPC's description. An unknown
// identifier is a no-op that still returns 204.
func (s *Server) handleUpdateDescription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateDescriptionRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if body.Description == "" {
			writeError(w, http.StatusBadRequest, "description must not be empty")
			return
		}

		id := chi.URLParam(r, "id")
		if err := s.personas.UpdateDescription(r.Context(), id, body.Description); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// updateVoiceRequest is the JSON body of PUT /npcs/{id}/voice.
type updateVoiceRequest struct {
	VoiceID string `json:"voice_id"`
}

// handleUpdateVoice replaces an NPC's voice selector. An unknown identifier
// is a no-op that still returns 204.
func (s *Server) handleUpdateVoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateVoiceRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		id := chi.URLParam(r, "id")
		if err := s.personas.UpdateVoice(r.Context(), id, body.VoiceID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
