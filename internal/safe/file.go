// Package safe holds guarded conversions and file access.
package safe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultMaxFileSize bounds ReadFile when no limit is given (4 GiB).
const DefaultMaxFileSize int64 = 4 << 30

// ErrTooLarge is returned for files above the size limit.
var ErrTooLarge = errors.New("file exceeds maximum allowed size")

// ReadFile reads a regular file of at most maxSize bytes. Symlinks are
// followed; directories, devices and pipes are rejected. A maxSize of zero
// means DefaultMaxFileSize.
func ReadFile(path string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%q is not a regular file", path)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrTooLarge, path, info.Size(), maxSize)
	}

	// #nosec G304 -- the path was validated above.
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	// The file may grow between Stat and Read.
	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %q grew past %d bytes", ErrTooLarge, path, maxSize)
	}
	return data, nil
}
