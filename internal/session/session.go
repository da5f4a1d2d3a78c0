// Package session owns the live bitmap of the document being edited.
//
// The history engine never mutates the bitmap: it reads it to capture
// restoration points and hands the session replacement images on
// undo, redo and restore.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/roach88/retouch/internal/imaging"
)

// ErrNoBitmap is returned when an operation needs a loaded image.
var ErrNoBitmap = errors.New("session has no bitmap")

// Session holds one open document's bitmap, its source path and whether it
// has unsaved changes. Safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	path     string
	bitmap   image.Image
	modified bool
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// Open decodes the image at path into a new session.
func Open(path string) (*Session, error) {
	s := New()
	if err := s.Load(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the session contents with the image at path and clears the
// modified flag.
func (s *Session) Load(path string) error {
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.bitmap = img
	s.modified = false
	return nil
}

// Path returns the file the bitmap was loaded from or last saved to.
func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Bitmap returns the live bitmap, or nil when nothing is loaded.
// Callers must treat it as read-only.
func (s *Session) Bitmap() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bitmap
}

// Replace swaps in a new bitmap and marks the session modified.
func (s *Session) Replace(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitmap = img
	s.modified = true
}

// Modified reports whether the bitmap changed since it was loaded or saved.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Save encodes the bitmap in the format implied by path's extension and
// writes it atomically. An empty path saves over the source file.
func (s *Session) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bitmap == nil {
		return ErrNoBitmap
	}
	if path == "" {
		path = s.path
	}
	if path == "" {
		return errors.New("save session: no path")
	}
	var buf bytes.Buffer
	if err := imaging.EncodeFor(&buf, s.bitmap, path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := writeAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.path = path
	s.modified = false
	return nil
}

// Export writes img to path atomically without touching the session.
func Export(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.EncodeFor(&buf, img, path); err != nil {
		return fmt.Errorf("export image: %w", err)
	}
	if err := writeAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("export image: %w", err)
	}
	return nil
}

// Close drops the bitmap.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitmap = nil
	s.path = ""
	s.modified = false
}
