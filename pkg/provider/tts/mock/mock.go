// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/talevox/talevox/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Call records a single invocation of Synthesize.
type Call struct {
	// Text is the reply text passed to Synthesize.
	Text string
	// Voice is the voice profile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
// Zero values cause Synthesize to return (nil, nil). Set Err to inject a
// failure, or Func to take over the call entirely.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize when Func and Err are unset.
	Audio []byte

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// Func, if non-nil, replaces the default behaviour.
	Func func(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error)

	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile

	// VoicesErr, if non-nil, is returned by ListVoices.
	VoicesErr error

	// Calls records every Synthesize invocation in order.
	Calls []Call
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) ([]byte, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Text: text, Voice: voice})
	p.mu.Unlock()

	if p.Func != nil {
		return p.Func(ctx, text, voice)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	if p.VoicesErr != nil {
		return nil, p.VoicesErr
	}
	return p.Voices, nil
}

// CallCount returns the number of recorded Synthesize invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastCall returns the most recent Synthesize call, or a zero value if none.
func (p *Provider) LastCall() Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return Call{}
	}
	return p.Calls[len(p.Calls)-1]
}
