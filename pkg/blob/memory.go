package blob

import (
	"bytes"
	"context"
	"io"
	"path"
	"sync"
	"time"
)

type memoryBlob struct {
	data []byte
	meta Metadata
}

// Memory keeps blobs in process.
type Memory struct {
	mu      sync.RWMutex
	blobs   map[string]memoryBlob
	baseURL string
	now     func() time.Time
}

// NewMemory returns an empty store serving URLs below baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{blobs: map[string]memoryBlob{}, baseURL: baseURL, now: time.Now}
}

func (m *Memory) Upload(ctx context.Context, up Upload) Task {
	clean, err := CleanPath(up.Path)
	if err != nil {
		return failedTask(err)
	}
	up.Path = clean
	return startTask(ctx, up, &memorySink{store: m, path: clean, contentType: up.ContentType})
}

type memorySink struct {
	store       *Memory
	path        string
	contentType string
	buf         bytes.Buffer
}

func (s *memorySink) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *memorySink) commit() (Metadata, error) {
	meta := Metadata{
		Path:        s.path,
		Name:        path.Base(s.path),
		Size:        int64(s.buf.Len()),
		ContentType: ContentTypeOf(s.path, s.contentType),
		TimeCreated: s.store.now().UTC(),
	}
	s.store.mu.Lock()
	s.store.blobs[s.path] = memoryBlob{data: bytes.Clone(s.buf.Bytes()), meta: meta}
	s.store.mu.Unlock()
	return meta, nil
}

func (s *memorySink) abort() {}

func (m *Memory) URL(ctx context.Context, p string) (string, error) {
	meta, err := m.Stat(ctx, p)
	if err != nil {
		return "", err
	}
	return urlFor(m.baseURL, meta.Path), nil
}

func (m *Memory) PathOf(rawURL string) (string, error) {
	return pathFromURL(m.baseURL, rawURL)
}

func (m *Memory) Delete(_ context.Context, p string) error {
	clean, err := CleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[clean]; !ok {
		return notFound(clean)
	}
	delete(m.blobs, clean)
	return nil
}

func (m *Memory) Stat(_ context.Context, p string) (Metadata, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return Metadata{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[clean]
	if !ok {
		return Metadata{}, notFound(clean)
	}
	return b.meta, nil
}

func (m *Memory) Open(ctx context.Context, p string) (io.ReadCloser, Metadata, error) {
	meta, err := m.Stat(ctx, p)
	if err != nil {
		return nil, Metadata{}, err
	}
	m.mu.RLock()
	data := m.blobs[meta.Path].data
	m.mu.RUnlock()
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

// Len reports how many blobs are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
