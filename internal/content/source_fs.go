package content

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var ErrInvalidID = errors.New("invalid content id")

// validIDPattern matches slug-style ids only (no path traversal possible).
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// FSSource serves content bytes from a local directory, one file per id.
type FSSource struct {
	basePath string
}

// NewFSSource creates a filesystem-backed content source.
func NewFSSource(basePath string) (*FSSource, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	return &FSSource{basePath: basePath}, nil
}

func validateID(id string) error {
	if id == "" || len(id) > 64 || !validIDPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

func (s *FSSource) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}
