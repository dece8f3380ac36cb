// Package file provides the default slot store: a device-local file per
// slot, suitable for fully offline operation.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SlotStore implements ports.SlotStore on the local filesystem. Writes go
// through a temp file and an atomic rename so a crash mid-write never
// clobbers the previously committed slot.
type SlotStore struct {
	dir string
}

// NewSlotStore creates the store's directory if needed.
func NewSlotStore(dir string) (*SlotStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating slot dir: %w", err)
	}
	return &SlotStore{dir: dir}, nil
}

// Get reads the slot's bytes. Returns nil, nil when the slot does not exist.
func (s *SlotStore) Get(_ context.Context, slot string) ([]byte, error) {
	path, err := s.path(slot)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading slot file: %w", err)
	}
	return data, nil
}

// Set replaces the slot's bytes atomically.
func (s *SlotStore) Set(_ context.Context, slot string, data []byte) error {
	path, err := s.path(slot)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("committing slot file: %w", err)
	}

	// The rename itself is not durable until the directory entry is
	// flushed, so sync the directory too.
	return s.syncDir()
}

func (s *SlotStore) syncDir() error {
	dir, err := os.Open(s.dir)
	if err != nil {
		return fmt.Errorf("opening slot dir: %w", err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		return fmt.Errorf("syncing slot dir: %w", err)
	}
	return nil
}

// Delete removes the slot. Deleting an absent slot is not an error.
func (s *SlotStore) Delete(_ context.Context, slot string) error {
	path, err := s.path(slot)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing slot file: %w", err)
	}
	return s.syncDir()
}

// HealthCheck verifies the store directory is present and writable.
type HealthCheck struct {
	dir string
}

// NewHealthCheck creates a health checker for the store's directory.
func NewHealthCheck(store *SlotStore) *HealthCheck {
	return &HealthCheck{dir: store.dir}
}

// Ping probes the directory with a throwaway write.
func (h *HealthCheck) Ping(_ context.Context) error {
	tmp, err := os.CreateTemp(h.dir, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("slot dir not writable: %w", err)
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}

// Name returns the dependency name for health reporting.
func (h *HealthCheck) Name() string {
	return "file_storage"
}

// path maps a slot name onto a file inside the store directory, rejecting
// names that would escape it.
func (s *SlotStore) path(slot string) (string, error) {
	if slot == "" || strings.ContainsAny(slot, `/\`) || strings.Contains(slot, "..") {
		return "", fmt.Errorf("invalid slot name %q", slot)
	}
	return filepath.Join(s.dir, slot+".dat"), nil
}
