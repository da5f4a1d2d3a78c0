package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeAtomic writes data next to path and renames it into place so a
// crash never leaves a truncated image behind.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("write: path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".retouch-*.tmp")
	if err != nil {
		return fmt.Errorf("write: create temp: %w", err)
	}
	name := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(name)
		}
	}()
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write: close temp: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("write: replace %s: %w", path, err)
	}
	success = true
	return nil
}
