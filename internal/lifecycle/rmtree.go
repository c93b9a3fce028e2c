package lifecycle

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// RMTree removes path recursively. If the first attempt fails with a
// permission error, it walks the tree restoring owner read/write/execute
// permissions (chmod -R u+rwX) and retries once; this recovers trees left
// behind by builds that mark their outputs read-only, notably Go module
// caches.
func RMTree(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	firstErr := os.RemoveAll(path)
	if firstErr == nil {
		return nil
	}
	if !os.IsPermission(firstErr) {
		return firstErr
	}

	if err := makeWritable(path); err != nil {
		return xerrors.Errorf("rmtree: restoring write permission on %s: %w", path, err)
	}
	return os.RemoveAll(path)
}

func makeWritable(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				// Can't even stat it; skip it and keep walking.
				return nil
			}
			return err
		}
		mode := info.Mode().Perm() | 0600
		if info.IsDir() || mode&0111 != 0 {
			mode |= 0100
		}
		return os.Chmod(p, mode)
	})
}
