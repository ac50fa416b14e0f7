// Package coqui provides a local Coqui TTS-backed provider that connects to
// either a Coqui XTTS v2 server or a standard Coqui TTS server via its REST
// API. It implements the tts.Provider interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body; the voice catalogue
//     is retrieved from GET /studio_speakers.
//
// Both servers operate in batch mode (one HTTP call per utterance) and return
// a complete WAV clip, which matches the unary Synthesize contract directly.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/talevox/talevox/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
	apiTTSEndpoint         = "/api/tts"
)

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the TTS server (e.g., "en",
// "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode selects the server API variant. Defaults to APIModeStandard.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// Provider implements tts.Provider against a local Coqui TTS server.
type Provider struct {
	baseURL    string
	language   string
	apiMode    APIMode
	httpClient *http.Client
}

// New creates a Provider targeting the Coqui server at baseURL
// (e.g., "http://localhost:5002").
func New(baseURL string, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// xttsRequest is the JSON body for POST /tts_to_audio/ on an XTTS v2 server.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize implements tts.Provider. The returned clip is a WAV file as
// produced by the server.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	if text == "" {
		return nil, errors.New("coqui: text must not be empty")
	}

	var (
		req *http.Request
		err error
	)
	switch p.apiMode {
	case APIModeXTTS:
		req, err = p.buildXTTSRequest(ctx, text, voice)
	default:
		req, err = p.buildStandardRequest(ctx, text, voice)
	}
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: server returned HTTP %d", resp.StatusCode)
	}

	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}
	if len(clip) == 0 {
		return nil, errors.New("coqui: server returned empty audio")
	}
	return clip, nil
}

// buildStandardRequest targets GET /api/tts on the standard Coqui server.
func (p *Provider) buildStandardRequest(ctx context.Context, text string, voice tts.VoiceProfile) (*http.Request, error) {
	q := url.Values{}
	q.Set("text", text)
	if voice.ID != "" {
		q.Set("speaker_id", voice.ID)
	}
	if p.language != "" {
		q.Set("language_id", p.language)
	}

	endpoint := p.baseURL + apiTTSEndpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	return req, nil
}

// buildXTTSRequest targets POST /tts_to_audio/ on an XTTS v2 server.
func (p *Provider) buildXTTSRequest(ctx context.Context, text string, voice tts.VoiceProfile) (*http.Request, error) {
	body, err := json.Marshal(xttsRequest{
		Text:       text,
		SpeakerWav: voice.ID,
		Language:   p.language,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+ttsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// ListVoices returns the provider's voice catalogue. In XTTS mode this is the
// studio speaker list; in standard mode the standard server does not expose a
// machine-readable catalogue, so an empty list is returned.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	if p.apiMode != APIModeXTTS {
		return []tts.VoiceProfile{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+studioSpeakersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: list voices: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: list voices: unexpected status %d", resp.StatusCode)
	}

	// /studio_speakers returns a map of speaker name → embedding data; only
	// the names are useful as voice selectors.
	var speakers map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("coqui: list voices decode: %w", err)
	}

	names := make([]string, 0, len(speakers))
	for name := range speakers {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]tts.VoiceProfile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, tts.VoiceProfile{
			ID:       name,
			Name:     name,
			Provider: "coqui",
		})
	}
	return profiles, nil
}
