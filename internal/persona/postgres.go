package persona

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the npc_personas table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS npc_personas (
    id          TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    voice_id    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// npc_personas table if it does not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("persona: migrate: %w", err)
	}
	return nil
}

// Create implements [Store.Create].
func (s *PostgresStore) Create(ctx context.Context, p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO npc_personas (id, description, voice_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query, p.ID, p.Description, p.VoiceID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %q", ErrAlreadyExists, p.ID)
		}
		return fmt.Errorf("persona: create: %w", err)
	}
	return nil
}

// Get implements [Store.Get]. It returns (nil, nil) if no persona with the
// given identifier exists.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Persona, error) {
	const query = `
		SELECT id, description, voice_id, created_at, updated_at
		FROM npc_personas
		WHERE id = $1`

	var p Persona
	err := s.db.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.Description, &p.VoiceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("persona: get %q: %w", id, err)
	}
	return &p, nil
}

// UpdateDescription implements [Store.UpdateDescription]. A missing
// identifier matches zero rows and is a silent no-op.
func (s *PostgresStore) UpdateDescription(ctx context.Context, id, description string) error {
	const query = `
		UPDATE npc_personas
		SET description = $2, updated_at = now()
		WHERE id = $1`

	_, err := s.db.Exec(ctx, query, id, description)
	if err != nil {
		return fmt.Errorf("persona: update description %q: %w", id, err)
	}
	return nil
}

// UpdateVoice implements [Store.UpdateVoice]. A missing identifier matches
// zero rows and is a silent no-op.
func (s *PostgresStore) UpdateVoice(ctx context.Context, id, voiceID string) error {
	const query = `
		UPDATE npc_personas
		SET voice_id = $2, updated_at = now()
		WHERE id = $1`

	_, err := s.db.Exec(ctx, query, id, voiceID)
	if err != nil {
		return fmt.Errorf("persona: update voice %q: %w", id, err)
	}
	return nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Persona, error) {
	const query = `
		SELECT id, description, voice_id, created_at, updated_at
		FROM npc_personas
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("persona: list: %w", err)
	}
	defer rows.Close()

	var personas []Persona
	for rows.Next() {
		var p Persona
		if err := rows.Scan(&p.ID, &p.Description, &p.VoiceID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("persona: list scan: %w", err)
		}
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persona: list: %w", err)
	}
	if personas == nil {
		personas = []Persona{}
	}
	return personas, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
