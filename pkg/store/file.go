package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arfa79/tailscale/pkg/model"
)

// FileStore keeps the fleet snapshot as a pretty-printed JSON array,
// written atomically via a rename.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file is an empty fleet; a corrupt file
// is returned as an error so the caller can log it and start empty.
func (s *FileStore) Load() ([]model.ExitNode, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file %s: %w", s.path, err)
	}
	var nodes []model.ExitNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", s.path, err)
	}
	return nodes, nil
}

func (s *FileStore) Save(nodes []model.ExitNode) error {
	if nodes == nil {
		nodes = []model.ExitNode{}
	}
	data, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
