package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/blob"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/store"
)

// ErrNoName rejects files without a usable name.
var ErrNoName = errors.New("media: file has no name")

// ErrNotStored reports an upload value with no metadata document behind it.
var ErrNotStored = errors.New("media: upload is not stored")

// File is one file handed to the upload flow.
type File struct {
	Name        string
	Body        io.Reader
	Size        int64
	ContentType string
}

// UploadOptions qualify the created metadata.
type UploadOptions struct {
	UserID   string
	IsPublic bool
	// OnProgress receives transfer snapshots per file.
	OnProgress func(name string, p blob.Progress)
	// Quiet suppresses the success toast.
	Quiet bool
}

// Edit is a metadata change. Nil fields are left untouched.
type Edit struct {
	Name     *string `json:"name,omitempty"`
	IsPublic *bool   `json:"isPublic,omitempty"`
}

// Service runs the upload, delete and edit flows.
type Service struct {
	blobs    blob.Store
	uploads  *store.Collection
	notifier notify.Notifier
	logger   *zap.SugaredLogger
	root     string
	newID    func() string
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier routes toasts.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRoot changes the blob folder and metadata collection.
func WithRoot(root string) Option {
	return func(s *Service) {
		if root = strings.Trim(root, "/"); root != "" {
			s.root = root
		}
	}
}

// WithFolderGenerator overrides the per-upload folder name.
func WithFolderGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService wires blob storage and the metadata store.
func NewService(blobs blob.Store, docs store.Store, opts ...Option) *Service {
	s := &Service{
		blobs:    blobs,
		notifier: notify.Discard,
		logger:   zap.NewNop().Sugar(),
		root:     DefaultRoot,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.uploads = store.NewCollection(docs, s.root, store.WithNotifier(s.notifier), store.WithLogger(s.logger))
	return s
}

// Root returns the blob folder and metadata collection name.
func (s *Service) Root() string { return s.root }

// Blobs exposes the blob store.
func (s *Service) Blobs() blob.Store { return s.blobs }

// Upload stores one file at {root}/{uuid}/{name}, resolves its URL and then
// writes the metadata document. Any failure is reported and ends the flow
// for this file; nothing is retried.
func (s *Service) Upload(ctx context.Context, file File, opts UploadOptions) (Upload, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(file.Name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return Upload{}, s.fail(file.Name, ErrNoName)
	}
	target := s.root + "/" + s.newID() + "/" + name

	task := s.blobs.Upload(ctx, blob.Upload{Path: target, Body: file.Body, Size: file.Size, ContentType: file.ContentType})
	for p := range task.Progress() {
		if opts.OnProgress != nil {
			opts.OnProgress(name, p)
		}
	}
	meta, err := task.Wait()
	if err != nil {
		return Upload{}, s.fail(name, err)
	}
	url, err := s.blobs.URL(ctx, meta.Path)
	if err != nil {
		return Upload{}, s.fail(name, err)
	}

	up := Upload{
		Name:        meta.Name,
		Size:        meta.Size,
		ContentType: meta.ContentType,
		TimeCreated: meta.TimeCreated,
		URL:         url,
		UserID:      opts.UserID,
		IsPublic:    opts.IsPublic,
		Path:        meta.Path,
	}
	id, err := s.uploads.Add(ctx, up.Record())
	if err != nil {
		return Upload{}, fmt.Errorf("media: save metadata for %s: %w", name, err)
	}
	up.ID = id
	if !opts.Quiet {
		s.notifier.Notify(notify.Notification{Level: notify.LevelSuccess, Title: name, Message: "File uploaded"})
	}
	s.logger.Infow("file uploaded", "name", name, "path", meta.Path, "size", meta.Size)
	return up, nil
}

// UploadAll uploads files one after another. Failed files are skipped; the
// joined error lists them.
func (s *Service) UploadAll(ctx context.Context, files []File, opts UploadOptions) ([]Upload, error) {
	var (
		out  []Upload
		errs []error
	)
	for _, file := range files {
		up, err := s.Upload(ctx, file, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, up)
	}
	return out, errors.Join(errs...)
}

// Delete removes the metadata document and then the blob. Both steps run
// even when the first fails; there is no rollback.
func (s *Service) Delete(ctx context.Context, up Upload) error {
	var errs []error
	if up.ID != "" {
		if err := s.uploads.Delete(ctx, up.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.deleteBlob(ctx, up); err != nil {
		errs = append(errs, s.fail(up.Name, err))
	}
	if len(errs) == 0 {
		s.notifier.Notify(notify.Notification{Level: notify.LevelSuccess, Title: up.Name, Message: "File deleted"})
	}
	return errors.Join(errs...)
}

// DeleteAll deletes every upload and reports each failure.
func (s *Service) DeleteAll(ctx context.Context, items []Upload) error {
	var errs []error
	for _, up := range items {
		if err := s.Delete(ctx, up); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Replace removes prev, the stored upload a single-file field held before
// its new file: the metadata document with prev.ID, then the blob at its
// path. Other documents sharing the file name are left alone.
func (s *Service) Replace(ctx context.Context, prev Upload) error {
	if prev.ID == "" {
		return s.fail(prev.Name, ErrNotStored)
	}
	if err := s.uploads.Delete(ctx, prev.ID); err != nil {
		return fmt.Errorf("media: delete metadata of %s: %w", prev.Name, err)
	}
	if err := s.deleteBlob(ctx, prev); err != nil {
		return s.fail(prev.Name, err)
	}
	return nil
}

func (s *Service) deleteBlob(ctx context.Context, up Upload) error {
	p := up.Path
	if p == "" {
		if up.URL == "" {
			return nil
		}
		var err error
		if p, err = s.blobs.PathOf(up.URL); err != nil {
			return err
		}
	}
	return s.blobs.Delete(ctx, p)
}

// UpdateMetadata applies edit to the document with id.
func (s *Service) UpdateMetadata(ctx context.Context, id string, edit Edit) error {
	patch := model.Record{}
	if edit.Name != nil {
		name := strings.TrimSpace(*edit.Name)
		if name == "" {
			return s.fail(id, ErrNoName)
		}
		patch["name"] = name
	}
	if edit.IsPublic != nil {
		patch["isPublic"] = *edit.IsPublic
	}
	if len(patch) == 0 {
		return nil
	}
	if err := s.uploads.Update(ctx, id, patch); err != nil {
		return err
	}
	notify.Success(s.notifier, "File details updated")
	return nil
}

// Get returns one metadata document.
func (s *Service) Get(ctx context.Context, id string) (Upload, error) {
	rec, err := s.uploads.Get(ctx, id)
	if err != nil {
		return Upload{}, err
	}
	return FromRecord(rec), nil
}

// List returns the public uploads merged with the uploads of userID.
func (s *Service) List(ctx context.Context, userID string) ([]Upload, error) {
	public, err := s.uploads.Where(ctx, store.Eq("isPublic", true))
	if err != nil {
		return nil, fmt.Errorf("media: list public: %w", err)
	}
	if userID == "" {
		return FromRecords(public), nil
	}
	mine, err := s.uploads.Where(ctx, store.Eq("userId", userID))
	if err != nil {
		return nil, fmt.Errorf("media: list mine: %w", err)
	}
	return MergeLists(FromRecords(public), FromRecords(mine)), nil
}

func (s *Service) fail(name string, err error) error {
	titled := notify.NotifierFunc(func(note notify.Notification) {
		note.Title = name
		s.notifier.Notify(note)
	})
	notify.Error(titled, err, "Upload error")
	s.logger.Warnw("media operation failed", "name", name, "error", err)
	return fmt.Errorf("media: %s: %w", name, err)
}
