// Package icons handles form icon blobs: format and size validation plus
// persistence to the icon directory.
package icons

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Blob is an uploaded icon: the original filename and its raw bytes.
type Blob struct {
	Filename string
	Data     []byte
}

// ValidationError reports an icon that failed format or size checks.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid icon: " + e.Reason
}

// Store validates and persists icon blobs.
type Store struct {
	dir       string
	formats   map[string]struct{}
	maxBytes  int64
	maxWidth  int
	maxHeight int
}

// NewStore builds an icon store writing into dir. Supported formats are file
// extensions including the leading dot.
func NewStore(dir string, formats []string, maxSizeMB float64, maxWidth, maxHeight int) *Store {
	allowed := make(map[string]struct{}, len(formats))
	for _, format := range formats {
		allowed[strings.ToLower(strings.TrimSpace(format))] = struct{}{}
	}
	return &Store{
		dir:       dir,
		formats:   allowed,
		maxBytes:  int64(maxSizeMB * 1024 * 1024),
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
	}
}

// ValidateFormat checks the blob's file extension against the whitelist.
func (s *Store) ValidateFormat(blob Blob) error {
	ext := strings.ToLower(filepath.Ext(blob.Filename))
	if _, ok := s.formats[ext]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("unsupported format %q", ext)}
	}
	return nil
}

// ValidateDimensions checks byte size and, for raster images, pixel bounds.
// SVG blobs only get the byte-size check.
func (s *Store) ValidateDimensions(blob Blob) error {
	if s.maxBytes > 0 && int64(len(blob.Data)) > s.maxBytes {
		return &ValidationError{Reason: fmt.Sprintf("icon exceeds %d bytes", s.maxBytes)}
	}

	if strings.EqualFold(filepath.Ext(blob.Filename), ".svg") {
		return nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob.Data))
	if err != nil {
		return &ValidationError{Reason: "undecodable image data"}
	}
	if s.maxWidth > 0 && cfg.Width > s.maxWidth {
		return &ValidationError{Reason: fmt.Sprintf("width %d exceeds %d", cfg.Width, s.maxWidth)}
	}
	if s.maxHeight > 0 && cfg.Height > s.maxHeight {
		return &ValidationError{Reason: fmt.Sprintf("height %d exceeds %d", cfg.Height, s.maxHeight)}
	}
	return nil
}

// StoreBlob validates and persists the blob, returning an opaque reference
// usable as the form's icon field.
func (s *Store) StoreBlob(blob Blob) (string, error) {
	if err := s.ValidateFormat(blob); err != nil {
		return "", err
	}
	if err := s.ValidateDimensions(blob); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("icons: create icon directory: %w", err)
	}

	ref := uuid.NewString() + strings.ToLower(filepath.Ext(blob.Filename))
	if err := os.WriteFile(filepath.Join(s.dir, ref), blob.Data, 0o644); err != nil {
		return "", fmt.Errorf("icons: write blob: %w", err)
	}
	return ref, nil
}
