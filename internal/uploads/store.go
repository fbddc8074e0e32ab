package uploads

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// URLPrefix is the public path under which stored files are served.
const URLPrefix = "/uploads/"

// Store persists uploaded files under a single directory.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir, now: time.Now}
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the local path of a stored file.
func (s *Store) Path(storedName string) string {
	return filepath.Join(s.dir, filepath.Base(storedName))
}

// URL returns the public URL path of a stored file.
func (s *Store) URL(storedName string) string {
	return URLPrefix + storedName
}

// Save writes r under a generated, collision-resistant name derived from
// originalName and returns that name.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := GenerateName(originalName, s.now())
	f, err := s.fs.OpenFile(s.Path(name), osCreateExcl, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.fs.Remove(s.Path(name))
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(s.Path(name))
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	return name, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(storedName string) error {
	err := s.fs.Remove(s.Path(storedName))
	if err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// GenerateName returns "<unix-ms>-<8 hex>-<sanitized original name>".
func GenerateName(originalName string, at time.Time) string {
	return fmt.Sprintf("%d-%s-%s", at.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8], SanitizeName(originalName))
}

// SanitizeName reduces name to a safe base name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '\t':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		case strings.ContainsRune(`:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
