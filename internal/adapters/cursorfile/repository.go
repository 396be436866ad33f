package cursorfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leboncoin-parser-service/internal/core/domain"
)

// Repository stores the resume cursor as a JSON file next to the output and
// uses an exclusively-created lock file to keep two runs off the same output.
type Repository struct {
	cursorPath string
	lockPath   string
	locked     bool
}

// NewRepository derives the cursor and lock paths from the output path:
// out.csv -> out.cursor.json and out.lock.
func NewRepository(outputPath string) *Repository {
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	return &Repository{
		cursorPath: base + ".cursor.json",
		lockPath:   base + ".lock",
	}
}

func (r *Repository) GetCursor(_ context.Context) (*domain.Cursor, error) {
	data, err := os.ReadFile(r.cursorPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cursor: read %q: %w", r.cursorPath, err)
	}

	var cursor domain.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("cursor: decode %q: %w", r.cursorPath, err)
	}
	return &cursor, nil
}

// SetCursor writes the cursor through a temp file and rename, so a crash mid
// write never leaves a truncated cursor behind.
func (r *Repository) SetCursor(_ context.Context, cursor *domain.Cursor) error {
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("cursor: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.cursorPath), 0o755); err != nil {
		return fmt.Errorf("cursor: create dir: %w", err)
	}
	tmp := r.cursorPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cursor: write: %w", err)
	}
	if err := os.Rename(tmp, r.cursorPath); err != nil {
		return fmt.Errorf("cursor: rename: %w", err)
	}
	return nil
}

func (r *Repository) AcquireRunLock(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.lockPath), 0o755); err != nil {
		return fmt.Errorf("lock: create dir: %w", err)
	}

	f, err := os.OpenFile(r.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock file %q exists: %w", r.lockPath, domain.ErrRunInProgress)
		}
		return fmt.Errorf("lock: create %q: %w", r.lockPath, err)
	}

	// The pid helps an operator decide whether a leftover lock is stale.
	fmt.Fprintf(f, "%d\n", os.Getpid())
	if err := f.Close(); err != nil {
		return fmt.Errorf("lock: close %q: %w", r.lockPath, err)
	}
	r.locked = true
	return nil
}

func (r *Repository) ReleaseRunLock(_ context.Context) error {
	if !r.locked {
		return nil
	}
	if err := os.Remove(r.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lock: remove %q: %w", r.lockPath, err)
	}
	r.locked = false
	return nil
}
