package resilience

import (
	"context"

	"github.com/talevox/talevox/pkg/provider/llm"
)

// GeneratorFallback implements [llm.Provider] with automatic failover across
// multiple generation backends. Each backend has its own circuit breaker; when
// the primary fails or its breaker is open, the next healthy fallback is tried.
type GeneratorFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*GeneratorFallback)(nil)

// NewGeneratorFallback creates a [GeneratorFallback] with primary as the
// preferred backend.
func NewGeneratorFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *GeneratorFallback {
	return &GeneratorFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional generation provider as a fallback.
func (f *GeneratorFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried.
func (f *GeneratorFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
