// Package history provides the durable, append-only conversation log between
// players and NPCs. The atomic unit is an [Exchange]: one player utterance
// paired with the NPC reply it produced, appended as a unit to the sequence
// for a (player, NPC) pair.
//
// The store owns exchange sequences exclusively. Callers only read bounded
// recency windows and append single exchanges; existing entries are never
// mutated or reordered. Position in the sequence is the authoritative
// ordering signal — the timestamp exists for operators, not for ordering.
//
// Implementations must be safe for concurrent use and must guarantee that
// concurrent appends for the same pair are serialized without loss, including
// the first append that materialises the pair.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrPlayerExists is returned by [Store.CreatePlayer] when the player
// identifier is already registered.
var ErrPlayerExists = errors.New("history: player already exists")

// ErrPlayerNotFound is returned by [Store.PlayerHistory] for an unregistered
// player identifier.
var ErrPlayerNotFound = errors.New("history: player not found")

// Exchange is one (player utterance, NPC reply) pair. Exchanges are immutable
// once appended.
type Exchange struct {
	// PlayerText is the player's utterance as transcribed or typed.
	PlayerText string `json:"player_text"`

	// NPCText is the NPC's generated reply.
	NPCText string `json:"npc_text"`

	// CreatedAt is when the exchange was recorded. Informational only; the
	// sequence position is the ordering authority.
	CreatedAt time.Time `json:"created_at"`
}

// Store is the conversation-history contract.
type Store interface {
	// Recent returns the last limit exchanges for the (playerID, npcID) pair
	// in chronological order (oldest of the window first). An unknown player
	// or NPC yields an empty, non-nil slice — absence is not an error.
	Recent(ctx context.Context, playerID, npcID string, limit int) ([]Exchange, error)

	// Append atomically extends the pair's sequence by exactly one exchange,
	// materialising the player record and the per-pair sequence on first use.
	// The create-if-absent step must be atomic with the append: two
	// concurrent first appends must both land, in some order, without
	// duplicating or corrupting the container.
	Append(ctx context.Context, playerID, npcID string, ex Exchange) error

	// CreatePlayer explicitly registers a player. Returns [ErrPlayerExists]
	// if the identifier is already registered. Registration is optional —
	// Append registers players lazily.
	CreatePlayer(ctx context.Context, playerID string) error

	// PlayerHistory returns the player's full history grouped by NPC
	// identifier, each sequence in chronological order. Returns
	// [ErrPlayerNotFound] for an unregistered player.
	PlayerHistory(ctx context.Context, playerID string) (map[string][]Exchange, error)

	// ListPlayers returns all registered player identifiers in sorted order.
	ListPlayers(ctx context.Context) ([]string, error)
}
