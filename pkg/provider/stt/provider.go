// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI Whisper API
// or a local whisper.cpp server) behind a single batch call: audio bytes in,
// transcript out. Backend selection is a deployment-time configuration choice;
// the conversation pipeline only ever sees this interface.
//
// Implementations must be safe for concurrent use. Multiple interactions may
// be transcribing simultaneously.
package stt

import "context"

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts an encoded audio clip (WAV or MP3, as produced by
	// the caller's payload decoding) into text. language is an ISO 639-1 hint
	// (e.g., "en", "fr"); an empty string lets the backend auto-detect.
	//
	// Returns an error if the backend cannot be reached, rejects the audio,
	// or ctx expires before a result arrives. A transcription failure is
	// fatal to the calling interaction; providers should not retry internally
	// beyond what their own adapter policy defines.
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}
