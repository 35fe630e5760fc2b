package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/apperr"
)

// Filesystem stores blobs below a root directory and serves them under a
// base URL (see internal/server for the handler).
type Filesystem struct {
	root    string
	baseURL string
	logger  *zap.SugaredLogger
}

// NewFilesystem creates root when missing.
func NewFilesystem(root, baseURL string, logger *zap.SugaredLogger) (*Filesystem, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &Filesystem{root: root, baseURL: baseURL, logger: logger}, nil
}

func (f *Filesystem) file(p string) string {
	return filepath.Join(f.root, filepath.FromSlash(p))
}

func (f *Filesystem) Upload(ctx context.Context, up Upload) Task {
	clean, err := CleanPath(up.Path)
	if err != nil {
		return failedTask(err)
	}
	up.Path = clean
	target := f.file(clean)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return failedTask(apperr.FromStorage("storage/unknown", fmt.Errorf("blob: mkdir: %w", err)))
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return failedTask(apperr.FromStorage("storage/unknown", fmt.Errorf("blob: temp file: %w", err)))
	}
	f.logger.Debugw("blob upload started", "path", clean, "size", up.Size)
	return startTask(ctx, up, &fileSink{fs: f, tmp: tmp, target: target, path: clean, contentType: up.ContentType})
}

type fileSink struct {
	fs          *Filesystem
	tmp         *os.File
	target      string
	path        string
	contentType string
}

func (s *fileSink) Write(p []byte) (int, error) { return s.tmp.Write(p) }

func (s *fileSink) commit() (Metadata, error) {
	if err := s.tmp.Close(); err != nil {
		os.Remove(s.tmp.Name())
		return Metadata{}, apperr.FromStorage("storage/unknown", fmt.Errorf("blob: close: %w", err))
	}
	if err := os.Rename(s.tmp.Name(), s.target); err != nil {
		os.Remove(s.tmp.Name())
		return Metadata{}, apperr.FromStorage("storage/unknown", fmt.Errorf("blob: rename: %w", err))
	}
	meta, err := s.fs.Stat(context.Background(), s.path)
	if err != nil {
		return Metadata{}, err
	}
	meta.ContentType = ContentTypeOf(s.path, s.contentType)
	return meta, nil
}

func (s *fileSink) abort() {
	s.tmp.Close()
	os.Remove(s.tmp.Name())
}

func (f *Filesystem) URL(ctx context.Context, p string) (string, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	if _, err := f.Stat(ctx, clean); err != nil {
		return "", err
	}
	return urlFor(f.baseURL, clean), nil
}

func (f *Filesystem) PathOf(rawURL string) (string, error) {
	return pathFromURL(f.baseURL, rawURL)
}

func (f *Filesystem) Delete(_ context.Context, p string) error {
	clean, err := CleanPath(p)
	if err != nil {
		return err
	}
	err = os.Remove(f.file(clean))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(clean)
	}
	if err != nil {
		return apperr.FromStorage("storage/unknown", fmt.Errorf("blob: delete %s: %w", clean, err))
	}
	// Uploads live in their own folder; drop it once empty.
	if dir := filepath.Dir(f.file(clean)); dir != filepath.Clean(f.root) {
		_ = os.Remove(dir)
	}
	return nil
}

func (f *Filesystem) Stat(_ context.Context, p string) (Metadata, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return Metadata{}, err
	}
	info, err := os.Stat(f.file(clean))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return Metadata{}, notFound(clean)
	}
	if err != nil {
		return Metadata{}, apperr.FromStorage("storage/unknown", fmt.Errorf("blob: stat %s: %w", clean, err))
	}
	return Metadata{
		Path:        clean,
		Name:        path.Base(clean),
		Size:        info.Size(),
		ContentType: ContentTypeOf(clean, ""),
		TimeCreated: info.ModTime().UTC(),
	}, nil
}

func (f *Filesystem) Open(ctx context.Context, p string) (io.ReadCloser, Metadata, error) {
	meta, err := f.Stat(ctx, p)
	if err != nil {
		return nil, Metadata{}, err
	}
	file, err := os.Open(f.file(meta.Path))
	if err != nil {
		return nil, Metadata{}, apperr.FromStorage("storage/unknown", fmt.Errorf("blob: open %s: %w", meta.Path, err))
	}
	return file, meta, nil
}
