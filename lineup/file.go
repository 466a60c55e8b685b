/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage writes each lineup to <dir>/<slot>.json.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("file storage requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(slot string) string {
	return filepath.Join(f.dir, filepath.Base(slot)+".json")
}

func (f *FileStorage) Load(ctx context.Context, slot string) (Assignments, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path(slot))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrNoLineup
	case err != nil:
		return nil, err
	}

	var a Assignments
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path(slot), err)
	}
	return a, nil
}

// Save replaces the slot file atomically and leaves it untouched when the
// content has not changed.
func (f *FileStorage) Save(ctx context.Context, slot string, a Assignments) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := f.path(slot)

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}

	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, data) {
		return nil
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, target)
}
