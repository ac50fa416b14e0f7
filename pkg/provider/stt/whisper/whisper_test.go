package whisper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talevox/talevox/pkg/provider/stt/whisper"
)

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing the provided responseText. Each matched request is
// passed to inspect, if set.
func newMockServer(t *testing.T, responseText string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	srv := newMockServer(t, "ok", nil)
	defer srv.Close()

	p, err := whisper.New(srv.URL + "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), []byte{0x01}, ""); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestTranscribe_ReturnsTrimmedText(t *testing.T) {
	srv := newMockServer(t, "  bonjour tout le monde \n", nil)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := p.Transcribe(context.Background(), []byte{0x01, 0x02}, "fr")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "bonjour tout le monde" {
		t.Errorf("text = %q, want trimmed transcript", text)
	}
}

func TestTranscribe_SendsMultipartFields(t *testing.T) {
	var gotLanguage, gotModel string
	var gotAudio []byte

	srv := newMockServer(t, "ok", func(r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")

		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		buf := make([]byte, 8)
		n, _ := f.Read(buf)
		gotAudio = buf[:n]
	})
	defer srv.Close()

	p, err := whisper.New(srv.URL, whisper.WithModel("small"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Transcribe(context.Background(), []byte{0xAA, 0xBB}, "en"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotLanguage != "en" {
		t.Errorf("language field = %q, want 'en'", gotLanguage)
	}
	if gotModel != "small" {
		t.Errorf("model field = %q, want 'small'", gotModel)
	}
	if len(gotAudio) != 2 || gotAudio[0] != 0xAA {
		t.Errorf("audio bytes = %v, want [aa bb]", gotAudio)
	}
}

func TestTranscribe_EmptyAudio_ReturnsError(t *testing.T) {
	p, err := whisper.New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), nil, "en"); err == nil {
		t.Fatal("expected error for empty audio, got nil")
	}
}

func TestTranscribe_ServerError_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Transcribe(context.Background(), []byte{0x01}, "")
	if err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want status code mentioned", err)
	}
}

func TestTranscribe_MalformedJSON_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), []byte{0x01}, ""); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestTranscribe_ContextCancelled_ReturnsError(t *testing.T) {
	srv := newMockServer(t, "ok", nil)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Transcribe(ctx, []byte{0x01}, ""); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
