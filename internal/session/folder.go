package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/retouch/internal/imaging"
)

// ErrNoNeighbor is returned when browsing past the first or last image of a
// folder.
var ErrNoNeighbor = errors.New("no further image in folder")

// Siblings lists the readable images in path's folder, sorted by name, and
// returns the index of path among them.
func Siblings(path string) ([]string, int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, -1, fmt.Errorf("list folder: %w", err)
	}
	dir := filepath.Dir(abs)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, -1, fmt.Errorf("list folder: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && imaging.IsImageFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	idx := slices.Index(files, abs)
	if idx < 0 {
		return nil, -1, fmt.Errorf("list folder: %s is not a readable image in %s", filepath.Base(abs), dir)
	}
	return files, idx, nil
}

// Neighbor returns the image delta places away from path in its folder,
// with its index and the folder's image count.
func Neighbor(path string, delta int) (next string, index, total int, err error) {
	files, idx, err := Siblings(path)
	if err != nil {
		return "", -1, 0, err
	}
	target := idx + delta
	if target < 0 || target >= len(files) {
		return "", idx, len(files), ErrNoNeighbor
	}
	return files[target], target, len(files), nil
}
