// Package persona provides persistent storage for NPC personas. A [Persona]
// is the static identity of an NPC — its free-text character description and
// the opaque voice selector handed to the speech synthesizer.
//
// The primary abstraction is the [Store] interface. [PostgresStore] is the
// durable implementation; [MemStore] backs tests and single-process
// deployments without a database.
package persona

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyExists is returned by [Store.Create] when the NPC identifier is
// already registered.
var ErrAlreadyExists = errors.New("persona: npc already exists")

// Persona is the static description of an NPC character.
type Persona struct {
	// ID is the unique, stable identifier for this NPC. Immutable once
	// created.
	ID string `json:"npc_id"`

	// Description is the free-text persona injected into generation prompts.
	Description string `json:"description"`

	// VoiceID is the synthesizer-specific voice selector. May be empty, in
	// which case the pipeline falls back to the configured default voice.
	VoiceID string `json:"voice_id,omitempty"`

	// CreatedAt is the time the persona was first persisted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the time the persona was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the Persona for logical consistency. It returns a joined
// error describing every violation found, or nil if the persona is valid.
func (p *Persona) Validate() error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, fmt.Errorf("persona: id must not be empty"))
	}
	if p.Description == "" {
		errs = append(errs, fmt.Errorf("persona: description must not be empty"))
	}

	return errors.Join(errs...)
}

// Store provides CRUD operations for NPC personas.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new persona. The persona is validated before
	// insertion. Returns [ErrAlreadyExists] if the identifier is already
	// registered; no partial write occurs in that case.
	Create(ctx context.Context, p *Persona) error

	// Get retrieves a persona by NPC identifier. Returns (nil, nil) if not
	// found — absence is not an error; callers substitute a default
	// description.
	Get(ctx context.Context, id string) (*Persona, error)

	// UpdateDescription replaces the description of an existing persona.
	// Updating a non-existent NPC is a silent no-op.
	UpdateDescription(ctx context.Context, id, description string) error

	// UpdateVoice replaces the voice selector of an existing persona.
	// Updating a non-existent NPC is a silent no-op.
	UpdateVoice(ctx context.Context, id, voiceID string) error

	// List returns all personas ordered by identifier.
	List(ctx context.Context) ([]Persona, error)
}
