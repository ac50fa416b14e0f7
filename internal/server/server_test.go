package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/talevox/talevox/internal/conversation"
	"github.com/talevox/talevox/internal/health"
	"github.com/talevox/talevox/internal/history"
	"github.com/talevox/talevox/internal/observe"
	"github.com/talevox/talevox/internal/persona"
)

// stubInteractor is a canned conversation pipeline.
type stubInteractor struct {
	result *conversation.Result
	err    error

	calls []conversation.Request
}

func (s *stubInteractor) Interact(_ context.Context, req conversation.Request) (*conversation.Result, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// testServer builds a Server over in-memory stores and returns it with its
// stores for seeding.
func testServer(t *testing.T, pipeline Interactor) (*Server, persona.Store, history.Store) {
	t.Helper()
	personas := persona.NewMemStore()
	players := history.NewMemStore()
	srv := New(
		Config{ListenAddr: "127.0.0.1:0"},
		pipeline,
		personas,
		players,
		health.New(),
		observe.DefaultMetrics(),
		nil,
	)
	return srv, personas, players
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestInteraction_Success(t *testing.T) {
	t.Parallel()

	stub := &stubInteractor{
		result: &conversation.Result{
			Transcript: "bonjour",
			ReplyText:  "Bienvenue, voyageur.",
			ReplyAudio: []byte{0x01, 0x02, 0x03},
		},
	}
	srv, _, _ := testServer(t, stub)

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/npc_interaction", map[string]string{
		"npc_id":    "innkeeper",
		"player_id": "p1",
		"mode":      "text",
		"text":      "bonjour",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp interactionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Transcript != "bonjour" {
		t.Errorf("transcript = %q, want 'bonjour'", resp.Transcript)
	}
	if resp.ReplyText != "Bienvenue, voyageur." {
		t.Errorf("reply_text = %q", resp.ReplyText)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.ReplyAudio)
	if err != nil {
		t.Fatalf("reply_audio not valid base64: %v", err)
	}
	if !bytes.Equal(audio, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("reply_audio = %v, want [1 2 3]", audio)
	}

	if len(stub.calls) != 1 {
		t.Fatalf("pipeline called %d times, want 1", len(stub.calls))
	}
	if got := stub.calls[0]; got.NPCID != "innkeeper" || got.Mode != conversation.ModeText {
		t.Errorf("pipeline request = %+v", got)
	}
}

func TestInteraction_UserErrorIs400(t *testing.T) {
	t.Parallel()

	stub := &stubInteractor{
		err: &conversation.StageError{
			Stage:     conversation.StageInput,
			UserError: true,
			Err:       errors.New("text must not be empty in text mode"),
		},
	}
	srv, _, _ := testServer(t, stub)

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/npc_interaction", map[string]string{
		"npc_id":    "innkeeper",
		"player_id": "p1",
		"mode":      "text",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Stage != "input" {
		t.Errorf("stage = %q, want 'input'", body.Stage)
	}
}

func TestInteraction_ProviderErrorIs502(t *testing.T) {
	t.Parallel()

	stub := &stubInteractor{
		err: &conversation.StageError{
			Stage: conversation.StageGeneration,
			Err:   errors.New("model unavailable"),
		},
	}
	srv, _, _ := testServer(t, stub)

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/npc_interaction", map[string]string{
		"npc_id":    "innkeeper",
		"player_id": "p1",
		"mode":      "text",
		"text":      "hello",
	})

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Stage != "generation" {
		t.Errorf("stage = %q, want 'generation'", body.Stage)
	}
}

func TestInteraction_MalformedBodyIs400(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, &stubInteractor{})

	req := httptest.NewRequest(http.MethodPost, "/npc_interaction", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateNPC(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, &stubInteractor{})
	body := map[string]string{
		"npc_id":      "innkeeper",
		"description": "A gruff innkeeper.",
		"voice_id":    "voice-1",
	}

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/npcs", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var created persona.Persona
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID != "innkeeper" || created.VoiceID != "voice-1" {
		t.Errorf("created = %+v", created)
	}
	if created.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}

	t.Run("duplicate is 409", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodPost, "/npcs", body)
		if rr.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
		}
	})

	t.Run("missing description is 400", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodPost, "/npcs", map[string]string{
			"npc_id": "ghost",
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestGetNPC(t *testing.T) {
	t.Parallel()

	srv, personas, _ := testServer(t, &stubInteractor{})
	if err := personas.Create(context.Background(), &persona.Persona{
		ID:          "blacksmith",
		Description: "Forges legendary blades.",
	}); err != nil {
		t.Fatalf("seed persona: %v", err)
	}

	t.Run("found", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodGet, "/npcs/blacksmith", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		var p persona.Persona
		if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.ID != "blacksmith" {
			t.Errorf("id = %q", p.ID)
		}
	})

	t.Run("missing is 404", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodGet, "/npcs/nobody", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

func TestListNPCs(t *testing.T) {
	t.Parallel()

	srv, personas, _ := testServer(t, &stubInteractor{})
	for _, id := range []string{"zed", "alma"} {
		if err := personas.Create(context.Background(), &persona.Persona{
			ID:          id,
			Description: "desc",
		}); err != nil {
			t.Fatalf("seed persona %q: %v", id, err)
		}
	}

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/npcs", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var list []persona.Persona
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].ID != "alma" || list[1].ID != "zed" {
		t.Errorf("list = %+v, want [alma zed]", list)
	}
}

func TestUpdateDescription(t *testing.T) {
	t.Parallel()

	srv, personas, _ := testServer(t, &stubInteractor{})
	if err := personas.Create(context.Background(), &persona.Persona{
		ID:          "bard",
		Description: "Sings off key.",
	}); err != nil {
		t.Fatalf("seed persona: %v", err)
	}

	rr := doJSON(t, srv.Handler(), http.MethodPut, "/npcs/bard/description", map[string]string{
		"description": "Sings beautifully now.",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	p, err := personas.Get(context.Background(), "bard")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Description != "Sings beautifully now." {
		t.Errorf("description = %q", p.Description)
	}

	t.Run("unknown id is a 204 no-op", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodPut, "/npcs/nobody/description", map[string]string{
			"description": "whatever",
		})
		if rr.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
		}
	})

	t.Run("empty description is 400", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodPut, "/npcs/bard/description", map[string]string{})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestUpdateVoice(t *testing.T) {
	t.Parallel()

	srv, personas, _ := testServer(t, &stubInteractor{})
	if err := personas.Create(context.Background(), &persona.Persona{
		ID:          "bard",
		Description: "Sings.",
	}); err != nil {
		t.Fatalf("seed persona: %v", err)
	}

	rr := doJSON(t, srv.Handler(), http.MethodPut, "/npcs/bard/voice", map[string]string{
		"voice_id": "voice-9",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}

	p, err := personas.Get(context.Background(), "bard")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.VoiceID != "voice-9" {
		t.Errorf("voice_id = %q, want 'voice-9'", p.VoiceID)
	}
}

func TestCreatePlayer(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, &stubInteractor{})

	rr := doJSON(t, srv.Handler(), http.MethodPost, "/players", map[string]string{
		"player_id": "p1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	t.Run("duplicate is 409", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodPost, "/players", map[string]string{
			"player_id": "p1",
		})
		if rr.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusConflict)
		}
	})

	t.Run("empty id is 400", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodPost, "/players", map[string]string{})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestListPlayers(t *testing.T) {
	t.Parallel()

	srv, _, players := testServer(t, &stubInteractor{})
	for _, id := range []string{"p2", "p1"} {
		if err := players.CreatePlayer(context.Background(), id); err != nil {
			t.Fatalf("seed player %q: %v", id, err)
		}
	}

	rr := doJSON(t, srv.Handler(), http.MethodGet, "/players", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body struct {
		Players []string `json:"players"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Players) != 2 || body.Players[0] != "p1" {
		t.Errorf("players = %v, want [p1 p2]", body.Players)
	}
}

func TestPlayerHistory(t *testing.T) {
	t.Parallel()

	srv, _, players := testServer(t, &stubInteractor{})
	ctx := context.Background()
	if err := players.Append(ctx, "p1", "innkeeper", history.Exchange{
		PlayerText: "hello",
		NPCText:    "well met",
	}); err != nil {
		t.Fatalf("seed exchange: %v", err)
	}

	t.Run("found", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodGet, "/players/p1/history", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		var body struct {
			PlayerID string                        `json:"player_id"`
			History  map[string][]history.Exchange `json:"history"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.History["innkeeper"]) != 1 {
			t.Errorf("history = %+v, want one innkeeper exchange", body.History)
		}
	})

	t.Run("missing is 404", func(t *testing.T) {
		rr := doJSON(t, srv.Handler(), http.MethodGet, "/players/nobody/history", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

func TestProbesAndMetricsMounted(t *testing.T) {
	t.Parallel()

	srv, _, _ := testServer(t, &stubInteractor{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := doJSON(t, srv.Handler(), http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}
