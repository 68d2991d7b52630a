// Package artifacts keeps local copies of checkpoint screenshots.
package artifacts

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/afero"
)

// Store writes checkpoint PNGs under a root directory, one folder per test.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates a Store rooted at dir on fs. A nil fs means the OS filesystem.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is empty")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &Store{fs: fs, root: dir}, nil
}

// SaveCheckpoint writes <root>/<test>/<step>-<tag>.png and returns its path.
func (s *Store) SaveCheckpoint(testName string, step int, tag string, png []byte) (string, error) {
	dir := filepath.Join(s.root, slug(testName, "test"))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%02d-%s.png", step, slug(tag, "checkpoint")))
	if err := afero.WriteFile(s.fs, path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// slug lowercases s and replaces anything but letters and digits with dashes.
func slug(s, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}
