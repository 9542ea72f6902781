package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Store keeps serialized browser state at a fixed path. The contents are
// opaque here; the browser package owns their format.
type Store struct {
	Path string
}

func NewStore(path string) Store {
	return Store{Path: path}
}

// Load returns the saved state, or ok == false when nothing was saved yet.
func (s Store) Load() (state []byte, ok bool, err error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read session %s: %w", s.Path, err)
	}
	return data, true, nil
}

func (s Store) Save(state []byte) error {
	if err := os.WriteFile(s.Path, state, 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", s.Path, err)
	}
	slog.Info("session saved", "path", s.Path)
	return nil
}

// Remove deletes the saved state. Removing a missing file is not an error.
func (s Store) Remove() error {
	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session %s: %w", s.Path, err)
	}
	return nil
}
