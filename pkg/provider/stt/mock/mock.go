// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcripts and verify the
// audio and language hints the pipeline passes down, without a live backend.
package mock

import (
	"context"
	"sync"

	"github.com/talevox/talevox/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Call records a single invocation of Transcribe.
type Call struct {
	// Audio is the clip passed to Transcribe.
	Audio []byte
	// Language is the language hint passed to Transcribe.
	Language string
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return ("", nil). Set Err to inject a
// failure, or Func to take over the call entirely.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe when Func and Err are unset.
	Text string

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// Func, if non-nil, replaces the default behaviour.
	Func func(ctx context.Context, audio []byte, language string) (string, error)

	// Calls records every invocation in order.
	Calls []Call
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Audio: audio, Language: language})
	p.mu.Unlock()

	if p.Func != nil {
		return p.Func(ctx, audio, language)
	}
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns the number of recorded Transcribe invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
