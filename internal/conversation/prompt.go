// Package conversation implements the request pipeline that turns player
// input into a spoken NPC reply: recognize, assemble a prompt, generate,
// synthesize and record the exchange.
package conversation

import (
	"fmt"
	"strings"

	"github.com/talevox/talevox/internal/history"
)

const (
	// DefaultPersonaDescription is substituted when the NPC has no
	// registered persona. The pipeline never fails on an unknown NPC.
	DefaultPersonaDescription = "Undefined character."

	// DefaultHistoryWindow is the number of most recent exchanges included
	// in a prompt when no explicit window size is configured.
	DefaultHistoryWindow = 10
)

// PromptInput carries everything the assembler needs. It is plain data so
// the assembly stays a pure function.
type PromptInput struct {
	PersonaDescription string
	History            []history.Exchange
	PlayerID           string
	NPCID              string
	InputText          string
	Language           string

	// Window bounds how many of the most recent history exchanges are
	// rendered into the prompt. Zero or negative means
	// [DefaultHistoryWindow]. The stored history is never truncated, only
	// the rendered window.
	Window int
}

// AssemblePrompt builds the generation prompt from persona, bounded history
// and the current input. The history is rendered oldest first so the most
// recent exchange sits closest to the player's current message.
func AssemblePrompt(in PromptInput) string {
	desc := strings.TrimSpace(in.PersonaDescription)
	if desc == "" {
		desc = DefaultPersonaDescription
	}

	window := in.Window
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	hist := in.History
	if len(hist) > window {
		hist = hist[len(hist)-window:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Player %s is talking to NPC %s.\n", in.PlayerID, in.NPCID)
	fmt.Fprintf(&b, "Language: %s.\n", in.Language)
	fmt.Fprintf(&b, "NPC description: %s\n", desc)

	if len(hist) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, ex := range hist {
			fmt.Fprintf(&b, "Player: %s\n", ex.PlayerText)
			fmt.Fprintf(&b, "NPC: %s\n", ex.NPCText)
		}
	}

	fmt.Fprintf(&b, "\nPlayer's message: %q\n", in.InputText)
	b.WriteString("\nRespond as the NPC. Stay in character, keep the reply concise, " +
		"answer in the specified language and stay consistent with the conversation so far.")
	return b.String()
}
