package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Confuzu/CivitAI-Downloader/internal/domain"
	"github.com/google/uuid"
)

// Store manages the destination tree: the embeddings/loras/models folders
// under a single root, plus the temp files downloads stream into. Temp
// files live directly under the root so the final rename stays on one
// filesystem and is atomic.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir and ensures the root exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download root %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// Root returns the download root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the final path of filename inside folder.
func (s *Store) Path(folder domain.Folder, filename string) string {
	return filepath.Join(s.root, string(folder), filename)
}

// Exists reports whether filename is already present in any destination
// folder. A hit anywhere counts, independent of where a fresh download of
// the same name would be classified. Point-in-time check; callers must
// tolerate a benign race with concurrent commits.
func (s *Store) Exists(filename string) bool {
	for _, folder := range domain.Folders() {
		if _, err := os.Stat(s.Path(folder, filename)); err == nil {
			return true
		}
	}
	return false
}

// CreateTemp creates a temp file for filename under the root. The name
// carries a random suffix so concurrent downloads of the same filename
// never share a temp file.
func (s *Store) CreateTemp(filename string) (*os.File, error) {
	path := filepath.Join(s.root, fmt.Sprintf("%s.%s.part", filename, uuid.NewString()))
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// Commit moves a fully written temp file into folder under filename,
// creating the folder on demand. The rename replaces any existing file;
// a partially written file is never visible under the final name.
func (s *Store) Commit(tmpPath string, folder domain.Folder, filename string) error {
	dir := filepath.Join(s.root, string(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", dir, err)
	}
	dest := filepath.Join(dir, filename)
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("move %s to %s: %w", tmpPath, dest, err)
	}
	return nil
}

// Discard removes a temp file, best effort. Used on every failure path;
// a failed removal never masks the original error.
func (s *Store) Discard(tmpPath string) {
	_ = os.Remove(tmpPath)
}
