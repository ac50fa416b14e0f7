package openai

import (
	"context"
	"testing"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New("", "whisper-1"); err == nil {
		t.Fatal("expected error for empty API key, got nil")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("key", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("model = %q, want %q", p.model, defaultModel)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p, err := New("key", "whisper-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), nil, "en"); err == nil {
		t.Fatal("expected error for empty audio, got nil")
	}
}

func TestIsWAV(t *testing.T) {
	wav := append([]byte("RIFF"), 0, 0, 0, 0)
	wav = append(wav, []byte("WAVE")...)

	tests := []struct {
		name  string
		audio []byte
		want  bool
	}{
		{"wav header", wav, true},
		{"mp3 frame", []byte{0xFF, 0xFB, 0x90, 0x00, 0, 0, 0, 0, 0, 0, 0, 0}, false},
		{"too short", []byte("RIFF"), false},
		{"empty", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isWAV(tc.audio); got != tc.want {
				t.Errorf("isWAV = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFileNameAndContentType(t *testing.T) {
	wav := append([]byte("RIFF"), 0, 0, 0, 0)
	wav = append(wav, []byte("WAVE")...)

	if got := fileName(wav); got != "audio.wav" {
		t.Errorf("fileName(wav) = %q", got)
	}
	if got := contentType(wav); got != "audio/wav" {
		t.Errorf("contentType(wav) = %q", got)
	}
	mp3 := []byte{0xFF, 0xFB}
	if got := fileName(mp3); got != "audio.mp3" {
		t.Errorf("fileName(mp3) = %q", got)
	}
	if got := contentType(mp3); got != "audio/mpeg" {
		t.Errorf("contentType(mp3) = %q", got)
	}
}
