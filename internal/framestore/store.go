// Package framestore keeps the most recently sampled frame as a JPEG artifact
// on disk. There is no history: every Store replaces the previous sample.
package framestore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

const defaultQuality = 90

var (
	// ErrFrameWrite is returned when the sample cannot be encoded or persisted
	ErrFrameWrite = errors.New("frame write failed")
	// ErrMissingArtifact is returned when no sample is currently stored
	ErrMissingArtifact = errors.New("frame artifact missing")
)

// Store persists the current sample at a fixed path
type Store struct {
	path    string
	quality int
}

// New creates a store writing to path. quality outside 1..100 falls back to 90.
func New(path string, quality int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("frame artifact path must not be empty")
	}
	if quality < 1 || quality > 100 {
		quality = defaultQuality
	}

	// Create parent directory if it doesn't exist
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory '%s': %w", dir, err)
		}
	}

	return &Store{path: path, quality: quality}, nil
}

// Path returns the artifact location
func (s *Store) Path() string {
	return s.path
}

// Store encodes img and atomically replaces the artifact with it.
// Readers see either the previous or the new file, never a partial one.
func (s *Store) Store(img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("%w: encode: %v", ErrFrameWrite, err)
	}

	if err := renameio.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFrameWrite, err)
	}
	return nil
}

// HasSample reports whether an artifact is currently present
func (s *Store) HasSample() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the artifact bytes, or ErrMissingArtifact if there is none
func (s *Store) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMissingArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frame artifact: %w", err)
	}
	return data, nil
}

// Remove deletes the artifact. A missing artifact is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove frame artifact: %w", err)
	}
	return nil
}
