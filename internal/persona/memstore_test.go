package persona

import (
	"context"
	"errors"
	"testing"
)

func TestMemStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	ctx := context.Background()

	p := &Persona{ID: "merchant", Description: "Runs the clothing store.", VoiceID: "v1"}
	if err := s.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("timestamps not populated on create")
	}

	got, err := s.Get(ctx, "merchant")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Description != "Runs the clothing store." || got.VoiceID != "v1" {
		t.Errorf("Get = %+v", got)
	}

	if err := s.Create(ctx, &Persona{ID: "merchant", Description: "again"}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate Create error = %v, want ErrAlreadyExists", err)
	}
	if err := s.Create(ctx, &Persona{}); err == nil {
		t.Error("invalid persona accepted")
	}
}

func TestMemStore_GetMissingReturnsNilNil(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	p, err := s.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != nil {
		t.Errorf("Get = %+v, want nil", p)
	}
}

func TestMemStore_Updates(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	ctx := context.Background()
	if err := s.Create(ctx, &Persona{ID: "guard", Description: "Stoic."}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.UpdateDescription(ctx, "guard", "Grumpy."); err != nil {
		t.Fatalf("UpdateDescription: %v", err)
	}
	if err := s.UpdateVoice(ctx, "guard", "v9"); err != nil {
		t.Fatalf("UpdateVoice: %v", err)
	}

	got, err := s.Get(ctx, "guard")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != "Grumpy." || got.VoiceID != "v9" {
		t.Errorf("persona after updates = %+v", got)
	}

	// Updating a missing NPC is a silent no-op.
	if err := s.UpdateDescription(ctx, "ghost", "boo"); err != nil {
		t.Errorf("UpdateDescription missing = %v, want nil", err)
	}
	if err := s.UpdateVoice(ctx, "ghost", "v0"); err != nil {
		t.Errorf("UpdateVoice missing = %v, want nil", err)
	}
	if p, _ := s.Get(ctx, "ghost"); p != nil {
		t.Error("no-op update created a persona")
	}
}

func TestMemStore_List(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	ctx := context.Background()

	personas, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(personas) != 0 {
		t.Errorf("List on empty store = %v", personas)
	}

	for _, id := range []string{"zed", "alma", "mira"} {
		if err := s.Create(ctx, &Persona{ID: id, Description: "d"}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	personas, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(personas) != 3 {
		t.Fatalf("len = %d, want 3", len(personas))
	}
	if personas[0].ID != "alma" || personas[1].ID != "mira" || personas[2].ID != "zed" {
		t.Errorf("List not ordered by id: %+v", personas)
	}
}
