package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFileName is created in the workspace root.
const DefaultFileName = ".codedojo-progress.json"

// FileStore keeps the snapshot in one JSON document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (Snapshot, *Warning) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSnapshot(), &Warning{Kind: WarnMissing, Path: s.path}
	}
	if err != nil {
		return NewSnapshot(), &Warning{Kind: WarnUnreadable, Path: s.path, Err: err}
	}

	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return NewSnapshot(), &Warning{Kind: WarnCorrupt, Path: s.path, Err: err}
	}
	if probe.Version != FormatVersion {
		return NewSnapshot(), &Warning{Kind: WarnVersionMismatch, Path: s.path, Err: fmt.Errorf("found version %d, want %d", probe.Version, FormatVersion)}
	}

	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return NewSnapshot(), &Warning{Kind: WarnCorrupt, Path: s.path, Err: err}
	}
	snap.normalize()
	return snap, nil
}

// Save replaces the file atomically: the snapshot is written and synced to a
// temporary file in the same directory, then renamed over the target.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".codedojo-progress-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(append(b, '\n')); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
