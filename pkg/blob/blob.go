// Package blob stores uploaded files. Uploads run in the background and are
// observed through a Task (progress events, cancel, wait). Failures are
// reported as apperr storage codes.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crudkit/pkg/apperr"
)

// chunkSize is the granularity of progress events.
const chunkSize = 32 * 1024

// Metadata describes a stored blob.
type Metadata struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	TimeCreated time.Time `json:"timeCreated"`
}

// Progress is a transfer snapshot.
type Progress struct {
	BytesTransferred int64 `json:"bytesTransferred"`
	TotalBytes       int64 `json:"totalBytes"`
}

// Fraction returns the completed share in [0,1]; unknown totals report 0.
func (p Progress) Fraction() float64 {
	if p.TotalBytes <= 0 {
		return 0
	}
	f := float64(p.BytesTransferred) / float64(p.TotalBytes)
	if f > 1 {
		return 1
	}
	return f
}

// Task is a running upload.
type Task interface {
	// Progress emits transfer snapshots and is closed when the task ends.
	Progress() <-chan Progress
	// Cancel aborts the transfer. Wait then returns a canceled error.
	Cancel()
	// Wait blocks until the upload finished.
	Wait() (Metadata, error)
}

// Upload describes one file to store.
type Upload struct {
	Path        string
	Body        io.Reader
	Size        int64
	ContentType string
}

// Store is the blob storage contract.
type Store interface {
	Upload(ctx context.Context, up Upload) Task
	// URL resolves the download URL of the blob at path.
	URL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (Metadata, error)
	Open(ctx context.Context, path string) (io.ReadCloser, Metadata, error)
	// PathOf maps a download URL back to the blob path.
	PathOf(rawURL string) (string, error)
}

// Sentinel causes wrapped by the apperr errors of this package.
var (
	ErrNotFound  = errors.New("blob: object not found")
	ErrCanceled  = errors.New("blob: upload canceled")
	ErrWrongSize = errors.New("blob: size mismatch")
	ErrBadPath   = errors.New("blob: invalid path")
)

func notFound(p string) error {
	return apperr.FromStorage("storage/object-not-found", fmt.Errorf("%w: %s", ErrNotFound, p))
}

func invalidURL(raw string) error {
	return apperr.FromStorage("storage/invalid-url", fmt.Errorf("%w: %q", ErrBadPath, raw))
}

// CleanPath normalises a blob path and rejects traversal.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" || clean == "." || strings.HasPrefix(clean, "..") || clean != strings.TrimPrefix(p, "/") {
		return "", invalidURL(p)
	}
	return clean, nil
}

// ContentTypeOf guesses a content type from the file extension.
func ContentTypeOf(name, declared string) string {
	if declared != "" {
		return declared
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// urlFor escapes every path segment below base.
func urlFor(base, p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}

func pathFromURL(base, raw string) (string, error) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(raw, prefix) {
		return "", invalidURL(raw)
	}
	rest := strings.TrimPrefix(raw, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil {
		return "", invalidURL(raw)
	}
	return CleanPath(unescaped)
}

// task runs a copy on a goroutine.
type task struct {
	progress chan Progress
	cancel   context.CancelFunc
	done     chan struct{}

	mu   sync.Mutex
	meta Metadata
	err  error
}

type sink interface {
	io.Writer
	commit() (Metadata, error)
	abort()
}

func startTask(ctx context.Context, up Upload, dst sink) *task {
	ctx, cancel := context.WithCancel(ctx)
	t := &task{
		progress: make(chan Progress, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go t.run(ctx, up, dst)
	return t
}

// failedTask returns a task that already ended with err.
func failedTask(err error) *task {
	t := &task{progress: make(chan Progress), cancel: func() {}, done: make(chan struct{}), err: err}
	close(t.progress)
	close(t.done)
	return t
}

func (t *task) run(ctx context.Context, up Upload, dst sink) {
	defer close(t.done)
	defer close(t.progress)
	defer t.cancel()

	meta, err := t.copy(ctx, up, dst)
	if err != nil {
		dst.abort()
	}
	t.mu.Lock()
	t.meta, t.err = meta, err
	t.mu.Unlock()
}

func (t *task) copy(ctx context.Context, up Upload, dst sink) (Metadata, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if ctx.Err() != nil {
			return Metadata{}, apperr.FromStorage("storage/canceled", ErrCanceled)
		}
		n, rerr := up.Body.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return Metadata{}, apperr.FromStorage("storage/unknown", fmt.Errorf("blob: write %s: %w", up.Path, err))
			}
			written += int64(n)
			t.emit(Progress{BytesTransferred: written, TotalBytes: up.Size})
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return Metadata{}, apperr.FromStorage("storage/unknown", fmt.Errorf("blob: read %s: %w", up.Path, rerr))
		}
	}
	if up.Size > 0 && written != up.Size {
		return Metadata{}, apperr.FromStorage("storage/server-file-wrong-size",
			fmt.Errorf("%w: expected %d bytes, got %d", ErrWrongSize, up.Size, written))
	}
	return dst.commit()
}

// emit never blocks the transfer; observers that fall behind miss
// intermediate snapshots.
func (t *task) emit(p Progress) {
	select {
	case t.progress <- p:
	default:
	}
}

func (t *task) Progress() <-chan Progress { return t.progress }

func (t *task) Cancel() { t.cancel() }

func (t *task) Wait() (Metadata, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.meta, t.err
}
