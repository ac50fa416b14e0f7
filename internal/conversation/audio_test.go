package conversation

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDecodeAudioPayload(t *testing.T) {
	clip := []byte{0x52, 0x49, 0x46, 0x46, 0xfb, 0xff, 0x01, 0x02}
	std := base64.StdEncoding.EncodeToString(clip)

	tests := []struct {
		name    string
		payload string
	}{
		{"plain standard", std},
		{"data uri", "data:audio/wav;base64," + std},
		{"url safe", base64.URLEncoding.EncodeToString(clip)},
		{"no padding", base64.RawStdEncoding.EncodeToString(clip)},
		{"embedded whitespace", std[:4] + "\n " + std[4:]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeAudioPayload(tc.payload)
			if err != nil {
				t.Fatalf("decodeAudioPayload: %v", err)
			}
			if !bytes.Equal(got, clip) {
				t.Errorf("decoded = %v, want %v", got, clip)
			}
		})
	}
}

func TestDecodeAudioPayload_Errors(t *testing.T) {
	for _, payload := range []string{"", "   \n\t ", "data:audio/wav;base64,", "!!!not-base64!!!"} {
		if _, err := decodeAudioPayload(payload); err == nil {
			t.Errorf("payload %q: expected error", payload)
		}
	}
}
