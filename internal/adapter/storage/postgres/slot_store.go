package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SlotStore implements ports.SlotStore over a single-row-per-slot table:
//
//	CREATE TABLE engine_slots (
//	    name       TEXT PRIMARY KEY,
//	    data       BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type SlotStore struct {
	pool Pool
}

// NewSlotStore creates a PostgreSQL-backed slot store.
func NewSlotStore(pool Pool) *SlotStore {
	return &SlotStore{pool: pool}
}

// Get reads a slot's bytes. Returns nil, nil when the slot does not exist.
func (s *SlotStore) Get(ctx context.Context, slot string) ([]byte, error) {
	query := `SELECT data FROM engine_slots WHERE name = $1`

	var data []byte
	err := s.pool.QueryRow(ctx, query, slot).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return data, nil
}

// Set upserts a slot's bytes in one statement, keeping the write atomic
// with respect to concurrent readers.
func (s *SlotStore) Set(ctx context.Context, slot string, data []byte) error {
	query := `INSERT INTO engine_slots (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	if _, err := s.pool.Exec(ctx, query, slot, data); err != nil {
		return fmt.Errorf("set slot: %w", err)
	}
	return nil
}

// Delete removes a slot. Deleting an absent slot is not an error.
func (s *SlotStore) Delete(ctx context.Context, slot string) error {
	query := `DELETE FROM engine_slots WHERE name = $1`

	if _, err := s.pool.Exec(ctx, query, slot); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}
