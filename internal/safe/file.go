package safe

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenFileOptions configures the behavior of OpenRegularFile.
type OpenFileOptions struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means no limit.
	MaxSize int64
	// AllowSymlinks allows opening symlinks. Default is false.
	AllowSymlinks bool
}

// OpenRegularFile opens path for reading after checking that it names a
// regular file within the size limit. Symlinks are rejected unless allowed.
func OpenRegularFile(path string, opts *OpenFileOptions) (*os.File, error) {
	if opts == nil {
		opts = &OpenFileOptions{}
	}

	cleanPath := filepath.Clean(path)

	// Check file info without following symlinks.
	info, err := os.Lstat(cleanPath)
	if err != nil {
		return nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !opts.AllowSymlinks {
			return nil, fmt.Errorf("refusing to open symlink: %s", cleanPath)
		}
		info, err = os.Stat(cleanPath)
		if err != nil {
			return nil, err
		}
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", cleanPath)
	}

	if opts.MaxSize > 0 && info.Size() > opts.MaxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), opts.MaxSize)
	}

	//nolint:gosec // G304: path validated above.
	return os.Open(cleanPath)
}
