package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nijaru/vidsum/errors"
)

// LocalStore writes run artifacts into a single directory on disk.
type LocalStore struct {
	BaseDir string

	create func(path string) (io.WriteCloser, error)
}

func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{BaseDir: baseDir}
}

// Init creates the directory if absent.
func (s *LocalStore) Init() error {
	const op = "LocalStore.Init"

	if err := os.MkdirAll(s.BaseDir, 0755); err != nil {
		return errors.Configuration(op, err, fmt.Sprintf("failed to create output directory %s", s.BaseDir))
	}
	return nil
}

// Save streams reader into BaseDir/name, replacing any existing file.
func (s *LocalStore) Save(name string, reader io.Reader) (string, error) {
	const op = "LocalStore.Save"

	if err := s.Init(); err != nil {
		return "", err
	}

	create := s.create
	if create == nil {
		create = func(path string) (io.WriteCloser, error) { return os.Create(path) }
	}

	path := s.Path(name)
	file, err := create(path)
	if err != nil {
		return "", errors.Internal(op, err, fmt.Sprintf("failed to create %s", path))
	}

	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(path)
		return "", errors.Transport(op, err, fmt.Sprintf("failed to write %s", path))
	}
	// Close flushes; a failure here means the file is incomplete.
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", errors.Transport(op, err, fmt.Sprintf("failed to close %s", path))
	}
	return path, nil
}

func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.BaseDir, filepath.Base(name))
}
