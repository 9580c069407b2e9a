// Package media stores uploaded demo logos on disk and serves them under
// /media/.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/logging"
	"github.com/wondertwin-ai/demo-management/internal/server"
)

const (
	// URLPrefix is the path the media directory is served under.
	URLPrefix = "/media/"
	// DefaultMaxLogoSize is the largest accepted logo file.
	DefaultMaxLogoSize = 5 << 20

	logoDir = "logo"
)

// AllowedExtensions lists the accepted logo file extensions.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif"}

// Store writes logo files below root/logo.
type Store struct {
	root    string
	maxSize int64
	logger  *slog.Logger
}

// New creates the logo directory under root. A maxSize of zero means
// DefaultMaxLogoSize.
func New(root string, maxSize int64, logger *slog.Logger) (*Store, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogoSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(root, logoDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &Store{root: root, maxSize: maxSize, logger: logger}, nil
}

func (s *Store) tooLarge() error {
	limit := fmt.Sprintf("%d bytes", s.maxSize)
	if s.maxSize%(1<<20) == 0 {
		limit = fmt.Sprintf("%dMB", s.maxSize>>20)
	}
	return &demo.UploadError{Msg: "File too large. Maximum size: " + limit}
}

// SaveLogo validates and writes an uploaded logo and returns its URL,
// /media/logo/demo_<id>_<suffix><ext>.
func (s *Store) SaveLogo(ctx context.Context, demoID string, up demo.Upload) (string, error) {
	if up.Filename == "" {
		return "", &demo.UploadError{Msg: "No filename provided"}
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !slices.Contains(AllowedExtensions, ext) {
		return "", &demo.UploadError{Msg: "Invalid file type. Allowed types: " + strings.Join(AllowedExtensions, ", ")}
	}
	if up.Size > s.maxSize {
		return "", s.tooLarge()
	}

	name := fmt.Sprintf("demo_%s_%s%s", demoID, uuid.NewString()[:8], ext)
	path := filepath.Join(s.root, logoDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating logo file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(up.Content, s.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		os.Remove(path)
		return "", fmt.Errorf("writing logo file: %w", err)
	case n > s.maxSize:
		os.Remove(path)
		return "", s.tooLarge()
	case n == 0:
		os.Remove(path)
		return "", &demo.UploadError{Msg: "Empty file"}
	}

	logging.FromContext(ctx, s.logger).Info("logo uploaded", "demo_id", demoID, "file", name, "bytes", n)
	return URLPrefix + logoDir + "/" + name, nil
}

// DeleteLogo removes a file previously returned by SaveLogo. External URLs
// and files that are already gone are ignored.
func (s *Store) DeleteLogo(ctx context.Context, url string) error {
	name, ok := strings.CutPrefix(url, URLPrefix+logoDir+"/")
	if !ok || name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, logoDir, name))
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.FromContext(ctx, s.logger).Warn("logo file not found", "file", name)
		return nil
	case err != nil:
		return fmt.Errorf("deleting logo %s: %w", name, err)
	}
	logging.FromContext(ctx, s.logger).Info("logo deleted", "file", name)
	return nil
}

// Handler serves stored files below URLPrefix. Directory listings are
// not served.
func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			server.Error(w, http.StatusNotFound, "File not found")
			return
		}
		files.ServeHTTP(w, r)
	})
}

// Routes mounts the file handler on r.
func (s *Store) Routes(r chi.Router) {
	h := s.Handler()
	r.Method(http.MethodGet, URLPrefix+"*", h)
	r.Method(http.MethodHead, URLPrefix+"*", h)
}
