// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a local
// Coqui instance) behind a single batch call: reply text and a voice selector
// in, one encoded audio clip out. The voice selector is opaque to everything
// except the provider that interprets it.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel (e.g., several NPC replies at once).
package tts

import "context"

// VoiceProfile describes the voice used for synthesis.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier. Required.
	ID string

	// Name is the human-readable voice name, when known.
	Name string

	// Provider identifies which TTS backend this voice belongs to.
	Provider string
}

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize converts text into a single encoded audio clip using the
	// given voice. The clip's container format is provider-specific (MP3 or
	// WAV for the bundled implementations).
	//
	// Returns an error if the voice is unknown, the backend fails, or ctx
	// expires before synthesis completes. A synthesis failure is fatal to the
	// calling interaction.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// ListVoices returns the voice profiles currently available from this
	// provider. The catalogue may change between calls.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
