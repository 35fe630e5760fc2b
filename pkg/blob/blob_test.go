package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-crudkit/pkg/apperr"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir(), "http://localhost/files", nil)
	if err != nil {
		t.Fatalf("filesystem: %v", err)
	}
	return map[string]Store{
		"memory":     NewMemory("http://localhost/files"),
		"filesystem": fsStore,
	}
}

func TestUploadLifecycle(t *testing.T) {
	payload := strings.Repeat("x", chunkSize*2+10)
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task := s.Upload(ctx, Upload{Path: "uploads/abc/cat photo.png", Body: strings.NewReader(payload), Size: int64(len(payload))})

			var last Progress
			for p := range task.Progress() {
				last = p
			}
			meta, err := task.Wait()
			if err != nil {
				t.Fatalf("upload: %v", err)
			}
			if meta.Size != int64(len(payload)) || meta.Name != "cat photo.png" || meta.ContentType != "image/png" {
				t.Fatalf("unexpected metadata %+v", meta)
			}
			if last.BytesTransferred != 0 && last.Fraction() != 1 {
				t.Fatalf("expected final progress to be complete, got %+v", last)
			}

			u, err := s.URL(ctx, meta.Path)
			if err != nil {
				t.Fatalf("url: %v", err)
			}
			if u != "http://localhost/files/uploads/abc/cat%20photo.png" {
				t.Fatalf("unexpected url %q", u)
			}
			p, err := s.PathOf(u)
			if err != nil || p != meta.Path {
				t.Fatalf("PathOf(%q) = %q, %v", u, p, err)
			}

			rc, _, err := s.Open(ctx, meta.Path)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			body, _ := io.ReadAll(rc)
			rc.Close()
			if string(body) != payload {
				t.Fatalf("content mismatch")
			}

			if err := s.Delete(ctx, meta.Path); err != nil {
				t.Fatalf("delete: %v", err)
			}
			err = s.Delete(ctx, meta.Path)
			if apperr.CodeOf(err) != apperr.CodeNotFound || !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not-found on second delete, got %v", err)
			}
		})
	}
}

func TestUploadWrongSize(t *testing.T) {
	s := NewMemory("/files")
	task := s.Upload(context.Background(), Upload{Path: "a/b.txt", Body: strings.NewReader("abc"), Size: 10})
	_, err := task.Wait()
	if apperr.CodeOf(err) != apperr.CodeWrongSize {
		t.Fatalf("expected wrong-size, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("failed upload must not store a blob")
	}
}

type blockingReader struct {
	release chan struct{}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	select {
	case <-r.release:
		return 0, io.EOF
	case <-time.After(10 * time.Millisecond):
		p[0] = 'x'
		return 1, nil
	}
}

func TestUploadCancel(t *testing.T) {
	s := NewMemory("/files")
	r := &blockingReader{release: make(chan struct{})}
	defer close(r.release)

	task := s.Upload(context.Background(), Upload{Path: "a/slow.bin", Body: r})
	<-task.Progress()
	task.Cancel()

	_, err := task.Wait()
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("canceled upload must not store a blob")
	}
}

func TestCleanPath(t *testing.T) {
	t.Parallel()
	valid := map[string]string{
		"uploads/a.png":  "uploads/a.png",
		"/uploads/a.png": "uploads/a.png",
	}
	for in, want := range valid {
		got, err := CleanPath(in)
		if err != nil || got != want {
			t.Fatalf("CleanPath(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "../etc/passwd", "uploads/../../x", "a//b", "."} {
		if _, err := CleanPath(in); apperr.CodeOf(err) != apperr.CodeInvalidURL {
			t.Fatalf("CleanPath(%q) should fail with invalid-url, got %v", in, err)
		}
	}
	if _, err := NewMemory("http://cdn").PathOf("http://elsewhere/a.png"); apperr.CodeOf(err) != apperr.CodeInvalidURL {
		t.Fatalf("foreign URL should be invalid, got %v", err)
	}
}

func TestFailedTaskClosesChannels(t *testing.T) {
	t.Parallel()
	task := NewMemory("/files").Upload(context.Background(), Upload{Path: "../x", Body: strings.NewReader("")})
	if _, open := <-task.Progress(); open {
		t.Fatalf("progress channel should be closed")
	}
	if _, err := task.Wait(); apperr.CodeOf(err) != apperr.CodeInvalidURL {
		t.Fatalf("expected invalid-url, got %v", err)
	}
}
