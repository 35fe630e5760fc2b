package media

import (
	"context"
	"fmt"
	"sync"
)

// Uploader backs a file field that uploads directly instead of picking from
// the gallery.
type Uploader struct {
	service *Service
	binding Binding

	mu    sync.Mutex
	items []Upload
}

// NewUploader returns an uploader storing values through binding.
func NewUploader(service *Service, binding Binding) *Uploader {
	return &Uploader{service: service, binding: binding}
}

// Load seeds the uploader with a stored field value.
func (u *Uploader) Load(value any, uploads []Upload) {
	items := u.binding.Resolve(value, uploads)
	u.mu.Lock()
	u.items = items
	u.mu.Unlock()
}

// Items returns the current uploads.
func (u *Uploader) Items() []Upload {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Upload(nil), u.items...)
}

// Value binds the current uploads into the field value.
func (u *Uploader) Value() any {
	return u.binding.Bind(u.Items())
}

// Add uploads files and returns the new field value. A multiple uploader
// appends every uploaded file. A single uploader stores only the first file
// and, once it is stored, deletes the previous upload. Placeholders and
// uploads of other users are never deleted.
func (u *Uploader) Add(ctx context.Context, files []File, opts UploadOptions) (any, error) {
	if len(files) == 0 {
		return u.Value(), nil
	}
	if u.binding.Multiple {
		added, err := u.service.UploadAll(ctx, files, opts)
		u.mu.Lock()
		u.items = append(u.items, added...)
		u.mu.Unlock()
		return u.Value(), err
	}

	up, err := u.service.Upload(ctx, files[0], opts)
	if err != nil {
		return u.Value(), err
	}
	u.mu.Lock()
	prev := u.items
	u.items = []Upload{up}
	u.mu.Unlock()

	if len(prev) == 0 || prev[0].ID == "" || prev[0].ID == up.ID {
		return u.Value(), nil
	}
	// The loaded value may not describe the stored document; trust the store.
	stored, err := u.service.Get(ctx, prev[0].ID)
	if err != nil || !stored.OwnedBy(opts.UserID) {
		return u.Value(), nil
	}
	if err := u.service.Replace(ctx, stored); err != nil {
		return u.Value(), fmt.Errorf("media: replace %s: %w", stored.Name, err)
	}
	return u.Value(), nil
}

// Remove drops the upload at index from the value. Stored files are kept.
func (u *Uploader) Remove(index int) any {
	u.mu.Lock()
	if index >= 0 && index < len(u.items) {
		u.items = append(u.items[:index:index], u.items[index+1:]...)
	}
	u.mu.Unlock()
	return u.Value()
}
