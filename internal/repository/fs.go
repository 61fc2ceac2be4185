package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileSystemRepository is the filesystem the pipeline reads and writes.
type FileSystemRepository interface {
	afero.Fs
}

// NewFileSystem returns the OS filesystem, rooted at root when it is set.
func NewFileSystem(root string) FileSystemRepository {
	if root == "" || root == "." {
		return afero.NewOsFs()
	}
	return afero.NewBasePathFs(afero.NewOsFs(), root)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, creating parent directories as needed.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
