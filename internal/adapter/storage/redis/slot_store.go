package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// SlotStore implements ports.SlotStore on Redis. Each slot maps to one
// key; envelope integrity is the queue store's concern, so values are
// opaque bytes here.
type SlotStore struct {
	client *goredis.Client
	prefix string
}

// NewSlotStore creates a Redis-backed slot store.
func NewSlotStore(client *goredis.Client) *SlotStore {
	return &SlotStore{
		client: client,
		prefix: "slot:",
	}
}

// Get reads a slot's bytes. Returns nil, nil when the key does not exist.
func (s *SlotStore) Get(ctx context.Context, slot string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.prefix+slot).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis slot get: %w", err)
	}
	return val, nil
}

// Set replaces a slot's bytes. Slots never expire; the queue is durable
// until explicitly pruned.
func (s *SlotStore) Set(ctx context.Context, slot string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+slot, data, 0).Err(); err != nil {
		return fmt.Errorf("redis slot set: %w", err)
	}
	return nil
}

// Delete removes a slot. Deleting an absent slot is not an error.
func (s *SlotStore) Delete(ctx context.Context, slot string) error {
	if err := s.client.Del(ctx, s.prefix+slot).Err(); err != nil {
		return fmt.Errorf("redis slot delete: %w", err)
	}
	return nil
}
