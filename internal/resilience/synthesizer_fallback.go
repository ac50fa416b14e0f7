package resilience

import (
	"context"

	"github.com/talevox/talevox/pkg/provider/tts"
)

// SynthesizerFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends.
//
// Voice selectors are provider-specific, so failover across synthesizers only
// makes sense between instances that accept the same voice identifiers (for
// example two regions of the same vendor).
type SynthesizerFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*SynthesizerFallback)(nil)

// NewSynthesizerFallback creates a [SynthesizerFallback] with primary as the
// preferred backend.
func NewSynthesizerFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *SynthesizerFallback {
	return &SynthesizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesis provider as a fallback.
func (f *SynthesizerFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize sends the text to the first healthy provider and returns its
// audio. If the primary fails, subsequent fallbacks are tried.
func (f *SynthesizerFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// ListVoices lists voices from the first healthy provider.
func (f *SynthesizerFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
