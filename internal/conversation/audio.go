package conversation

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
)

// decodeAudioPayload turns the wire representation of an audio clip into raw
// bytes. Clients send base64 text, sometimes wrapped in a data: URI and
// sometimes using the URL-safe alphabet with the padding stripped, so the
// decoder normalizes all of those before decoding.
func decodeAudioPayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.IndexByte(payload, ','); idx >= 0 {
			payload = payload[idx+1:]
		}
	}

	payload = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)

	if payload == "" {
		return nil, fmt.Errorf("empty audio payload")
	}

	if pad := len(payload) % 4; pad != 0 {
		payload += strings.Repeat("=", 4-pad)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	data, uerr := base64.URLEncoding.DecodeString(payload)
	if uerr == nil {
		return data, nil
	}
	return nil, fmt.Errorf("decode audio payload: %w", err)
}
