package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrExtNotAllowed = errors.New("file extension not allowed")

// image types the portal serves in banners and profile pictures
var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// Store writes uploaded images under root with random names and
// returns web paths rooted at webPrefix.
type Store struct {
	root      string
	webPrefix string
}

func NewStore(root, webPrefix string) *Store {
	return &Store{root: root, webPrefix: strings.TrimRight(webPrefix, "/")}
}

func (s *Store) Root() string { return s.root }

// Allowed reports whether the filename's extension is an accepted
// image type.
func Allowed(filename string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(filename))]
}

// Save stores the upload under a fresh uuid name, keeping only the
// original extension, and returns the web path to serve it from.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExts[ext] {
		return "", ErrExtNotAllowed
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	dst := filepath.Join(s.root, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("close upload: %w", err)
	}

	return s.webPrefix + "/" + name, nil
}

// Remove deletes a previously saved file given its web path. Paths
// outside the store are rejected.
func (s *Store) Remove(webPath string) error {
	name := filepath.Base(webPath)
	if name == "." || name == "/" || name == ".." {
		return fmt.Errorf("invalid upload path %q", webPath)
	}
	err := os.Remove(filepath.Join(s.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
