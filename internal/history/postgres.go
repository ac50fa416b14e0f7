package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the players and exchanges tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
//
// Exchanges carry no foreign key to players: the append path materialises the
// player row and the exchange row in one statement, and a constraint check
// across a data-modifying CTE would not observe the sibling insert.
const Schema = `
CREATE TABLE IF NOT EXISTS players (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS exchanges (
    id          BIGSERIAL PRIMARY KEY,
    player_id   TEXT NOT NULL,
    npc_id      TEXT NOT NULL,
    player_text TEXT NOT NULL,
    npc_text    TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_exchanges_pair ON exchanges (player_id, npc_id, id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
//
// Appends are single INSERT statements, so the serializability of concurrent
// appends for one pair falls out of row-level insert semantics and the serial
// id column; there is no read-check-then-write window.
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

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Recent implements [Store.Recent]. The newest limit rows are selected in
// descending id order and reversed, so the result is always a chronological
// suffix of the stored sequence.
func (s *PostgresStore) Recent(ctx context.Context, playerID, npcID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return []Exchange{}, nil
	}

	const query = `
		SELECT player_text, npc_text, created_at
		FROM exchanges
		WHERE player_id = $1 AND npc_id = $2
		ORDER BY id DESC
		LIMIT $3`

	rows, err := s.db.Query(ctx, query, playerID, npcID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var window []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.PlayerText, &ex.NPCText, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		window = append(window, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}

	// Reverse into chronological order, oldest first.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	if window == nil {
		window = []Exchange{}
	}
	return window, nil
}

// Append implements [Store.Append]. Player registration and the exchange
// insert happen in one statement: the data-modifying CTE upserts the player
// row idempotently while the outer INSERT extends the sequence.
func (s *PostgresStore) Append(ctx context.Context, playerID, npcID string, ex Exchange) error {
	if playerID == "" || npcID == "" {
		return fmt.Errorf("history: append: playerID and npcID must not be empty")
	}

	const query = `
		WITH ensure_player AS (
			INSERT INTO players (id) VALUES ($1)
			ON CONFLICT (id) DO NOTHING
		)
		INSERT INTO exchanges (player_id, npc_id, player_text, npc_text)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.Exec(ctx, query, playerID, npcID, ex.PlayerText, ex.NPCText)
	if err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	return nil
}

// CreatePlayer implements [Store.CreatePlayer].
func (s *PostgresStore) CreatePlayer(ctx context.Context, playerID string) error {
	if playerID == "" {
		return fmt.Errorf("history: create player: id must not be empty")
	}

	const query = `INSERT INTO players (id) VALUES ($1)`
	_, err := s.db.Exec(ctx, query, playerID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %q", ErrPlayerExists, playerID)
		}
		return fmt.Errorf("history: create player: %w", err)
	}
	return nil
}

// PlayerHistory implements [Store.PlayerHistory].
func (s *PostgresStore) PlayerHistory(ctx context.Context, playerID string) (map[string][]Exchange, error) {
	const existsQuery = `SELECT 1 FROM players WHERE id = $1`
	var one int
	if err := s.db.QueryRow(ctx, existsQuery, playerID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrPlayerNotFound, playerID)
		}
		return nil, fmt.Errorf("history: player lookup %q: %w", playerID, err)
	}

	const query = `
		SELECT npc_id, player_text, npc_text, created_at
		FROM exchanges
		WHERE player_id = $1
		ORDER BY id`

	rows, err := s.db.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("history: player history: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]Exchange)
	for rows.Next() {
		var (
			npcID string
			ex    Exchange
		)
		if err := rows.Scan(&npcID, &ex.PlayerText, &ex.NPCText, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: player history scan: %w", err)
		}
		result[npcID] = append(result[npcID], ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: player history: %w", err)
	}
	return result, nil
}

// ListPlayers implements [Store.ListPlayers].
func (s *PostgresStore) ListPlayers(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM players ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history: list players: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("history: list players scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list players: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
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
