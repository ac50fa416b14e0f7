// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the CompletionRequests the pipeline
// assembles and to feed controlled replies without a live backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Response: &llm.CompletionResponse{Content: "Well met, traveller."},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/talevox/talevox/pkg/provider/llm"
)

// Compile-time assertion that Provider implements llm.Provider.
var _ llm.Provider = (*Provider)(nil)

// Call records a single invocation of Complete.
type Call struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
// Zero values cause Complete to return (nil, nil). Set Err to inject a
// failure, or Func to take over the call entirely.
type Provider struct {
	mu sync.Mutex

	// Response is returned by Complete when Func and Err are unset.
	Response *llm.CompletionResponse

	// Err, if non-nil, is returned by Complete.
	Err error

	// Func, if non-nil, replaces the default behaviour.
	Func func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Calls records every invocation in order.
	Calls []Call
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})
	p.mu.Unlock()

	if p.Func != nil {
		return p.Func(ctx, req)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Response, nil
}

// CallCount returns the number of recorded Complete invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// LastRequest returns the most recent CompletionRequest, or a zero value if
// Complete has not been called.
func (p *Provider) LastRequest() llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return llm.CompletionRequest{}
	}
	return p.Calls[len(p.Calls)-1].Req
}
