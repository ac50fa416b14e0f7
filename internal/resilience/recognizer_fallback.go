package resilience

import (
	"context"

	"github.com/talevox/talevox/pkg/provider/stt"
)

// RecognizerFallback implements [stt.Provider] with automatic failover across
// multiple recognition backends.
type RecognizerFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend.
func NewRecognizerFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	return &RecognizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition provider as a fallback.
func (f *RecognizerFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the clip to the first healthy provider and returns its
// transcript. If the primary fails, subsequent fallbacks are tried.
func (f *RecognizerFallback) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, audio, language)
	})
}
