// Package uploads stores photo evidence on disk and hands back opaque URLs.
// Owning rows (readings, unloads, deposits) persist the URL lists; the file
// contents never enter the database.
package uploads

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxUploadBytes = 10 << 20

// ErrUnsupportedType rejects files outside the allowed image set.
var ErrUnsupportedType = errors.New("uploads: unsupported file type")

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// Service writes uploaded files under a base directory, partitioned by day.
type Service struct {
	baseDir string
	baseURL string
	now     func() time.Time
}

// NewService constructs the upload service. baseURL is the public prefix
// the stored name is appended to.
func NewService(baseDir, baseURL string) *Service {
	return &Service{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Store persists one multipart file and returns its opaque URL.
func (s *Service) Store(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > maxUploadBytes {
		return "", errors.New("uploads: file exceeds 10 MB")
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedType
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	day := s.now().UTC().Format("2006/01/02")
	name := hex.EncodeToString(buf) + ext
	dir := filepath.Join(s.baseDir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, io.LimitReader(file, maxUploadBytes)); err != nil {
		return "", err
	}
	return s.baseURL + "/" + day + "/" + name, nil
}

// Dir returns the base directory, used to mount the static file server.
func (s *Service) Dir() string {
	return s.baseDir
}
