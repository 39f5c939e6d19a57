package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileSystem answers the existence probes used for idempotent resume.
type FileSystem interface {
	Exists(path string) (bool, error)
}

// OSFileSystem implements FileSystem with os.Stat.
type OSFileSystem struct{}

// Exists reports whether path exists. Errors other than not-exist are
// returned wrapped in ErrFilesystem.
func (OSFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: stat %s: %w", ErrFilesystem, path, err)
	}
}
