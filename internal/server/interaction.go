package server

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/talevox/talevox/internal/conversation"
)

// interactionRequest is the JSON body of POST /npc_interaction.
type interactionRequest struct {
	NPCID    string `json:"npc_id"`
	PlayerID string `json:"player_id"`

	// Mode is "audio" or "text".
	Mode string `json:"mode"`

	// AudioBase64 carries the encoded clip in audio mode. A data: URI wrapper
	// is accepted.
	AudioBase64 string `json:"audio_base64,omitempty"`

	// Text carries the typed utterance in text mode.
	Text string `json:"text,omitempty"`

	// Language is an ISO 639-1 hint; empty selects the server default.
	Language string `json:"language,omitempty"`
}

// interactionResponse is the JSON body of a successful interaction.
type interactionResponse struct {
	Transcript string `json:"transcript"`
	ReplyText  string `json:"reply_text"`

	// ReplyAudio is the synthesized clip, standard base64.
	ReplyAudio string `json:"reply_audio"`
}

// handleInteraction runs one exchange through the conversation pipeline.
func (s *Server) handleInteraction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body interactionRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		result, err := s.pipeline.Interact(r.Context(), conversation.Request{
			NPCID:        body.NPCID,
			PlayerID:     body.PlayerID,
			Mode:         conversation.Mode(body.Mode),
			AudioPayload: body.AudioBase64,
			Text:         body.Text,
			Language:     body.Language,
		})
		if err != nil {
			writeInteractionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, interactionResponse{
			Transcript: result.Transcript,
			ReplyText:  result.ReplyText,
			ReplyAudio: base64.StdEncoding.EncodeToString(result.ReplyAudio),
		})
	}
}

// writeInteractionError maps pipeline failures to HTTP statuses: user-input
// problems are 400, provider stage failures are 502, anything else 500. The
// stage name is included so callers can tell which hop failed.
func writeInteractionError(w http.ResponseWriter, err error) {
	var stageErr *conversation.StageError
	if !errors.As(err, &stageErr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusBadGateway
	if stageErr.UserError {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{
		Error: stageErr.Error(),
		Stage: string(stageErr.Stage),
	})
}
