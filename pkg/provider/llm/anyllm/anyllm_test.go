package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/talevox/talevox/pkg/provider/llm"
)

// ── construction ──────────────────────────────────────────────────────────────

func TestNew_EmptyProviderName(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for empty provider name, got nil")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := New("openai", ""); err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

func TestNew_UnsupportedBackend(t *testing.T) {
	if _, err := New("cohere", "command-r"); err == nil {
		t.Fatal("expected error for unsupported backend, got nil")
	}
}

func TestNew_SupportedBackends(t *testing.T) {
	for _, name := range []string{
		"openai", "anthropic", "gemini", "ollama",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, "some-model", anyllmlib.WithAPIKey("key"))
			if err != nil {
				t.Fatalf("New(%q): %v", name, err)
			}
			if p == nil {
				t.Fatal("expected non-nil provider")
			}
		})
	}
}

func TestNew_CaseInsensitiveBackendName(t *testing.T) {
	if _, err := New("OpenAI", "gpt-4o-mini", anyllmlib.WithAPIKey("key")); err != nil {
		t.Fatalf("New: %v", err)
	}
}

// ── request parameter mapping ─────────────────────────────────────────────────

func TestBuildParams_SystemAndUserMessages(t *testing.T) {
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a non-player character (NPC) in a video game.",
		Prompt:       "Player says hello.",
	})

	if params.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Messages[1].Role != anyllmlib.RoleUser {
		t.Errorf("second role = %q, want user", params.Messages[1].Role)
	}
	if params.Messages[1].ContentString() != "Player says hello." {
		t.Errorf("user content = %q", params.Messages[1].ContentString())
	}
}

func TestBuildParams_NoSystemPrompt(t *testing.T) {
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	params := p.buildParams(llm.CompletionRequest{Prompt: "hi"})
	if len(params.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleUser {
		t.Errorf("role = %q, want user", params.Messages[0].Role)
	}
}

func TestBuildParams_OptionalKnobs(t *testing.T) {
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("key"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Run("set", func(t *testing.T) {
		params := p.buildParams(llm.CompletionRequest{
			Prompt:      "hi",
			Temperature: 0.7,
			MaxTokens:   256,
		})
		if params.Temperature == nil || *params.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", params.Temperature)
		}
		if params.MaxTokens == nil || *params.MaxTokens != 256 {
			t.Errorf("max tokens = %v, want 256", params.MaxTokens)
		}
	})

	t.Run("unset means backend default", func(t *testing.T) {
		params := p.buildParams(llm.CompletionRequest{Prompt: "hi"})
		if params.Temperature != nil {
			t.Errorf("temperature = %v, want nil", params.Temperature)
		}
		if params.MaxTokens != nil {
			t.Errorf("max tokens = %v, want nil", params.MaxTokens)
		}
	})
}
