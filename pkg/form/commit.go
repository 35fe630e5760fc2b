package form

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ErrNoSubmit is returned by Commit when no submit callback is configured.
var ErrNoSubmit = errors.New("form: submit callback is not configured")

var (
	richPolicyOnce sync.Once
	richPolicy     *bluemonday.Policy
)

func richSanitizer() *bluemonday.Policy {
	richPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowAttrs("class").Globally()
		richPolicy = policy
	})
	return richPolicy
}

// SanitizeRich strips unsafe markup from rich-text values.
func SanitizeRich(html string) string {
	return richSanitizer().Sanitize(html)
}

// Commit submits the current values. Without validation the callback gets
// the raw values. Otherwise validation errors block the submit and are
// returned as *ValidationError, and rich-text fields are sanitised first.
func (f *Form) Commit(ctx context.Context) error {
	if f.cfg.submit == nil {
		return ErrNoSubmit
	}
	if f.cfg.noValidation {
		return f.cfg.submit(ctx, f.Values())
	}

	if errs := f.Validate(); len(errs) > 0 {
		f.cfg.logger.Debugw("form validation failed", "fields", len(errs))
		return &ValidationError{Fields: errs}
	}

	values := f.Values()
	sanitizeFields(f.fields, values)
	return f.cfg.submit(ctx, values)
}

func sanitizeFields(fields []model.Field, values map[string]any) {
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		switch field.Type {
		case model.FieldTypeRich:
			if html, ok := values[field.Key].(string); ok {
				values[field.Key] = SanitizeRich(html)
			}
		case model.FieldTypeItemsForm:
			for _, raw := range asItems(values[field.Key]) {
				if entry, ok := raw.(map[string]any); ok {
					sanitizeFields(field.Nested, entry)
				}
			}
		case model.FieldTypeCheckForm:
			current, _ := values[field.Key].(map[string]any)
			for _, raw := range current {
				if entry, ok := raw.(map[string]any); ok {
					sanitizeFields(field.Nested, entry)
				}
			}
		}
	}
}

// ErrNotArmed is returned by Confirm when no delete was requested.
var ErrNotArmed = errors.New("form: delete was not requested")

// DeleteGate requires a confirm step before the delete callback fires. The
// modifier-key path (Bypass) skips the confirmation.
type DeleteGate struct {
	mu       sync.Mutex
	armed    bool
	onDelete func(ctx context.Context) error
}

// NewDeleteGate wraps the delete callback.
func NewDeleteGate(onDelete func(ctx context.Context) error) *DeleteGate {
	return &DeleteGate{onDelete: onDelete}
}

// Request opens the confirmation.
func (g *DeleteGate) Request() {
	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
}

// Armed reports whether a confirmation is pending.
func (g *DeleteGate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Cancel closes the confirmation without deleting.
func (g *DeleteGate) Cancel() {
	g.mu.Lock()
	g.armed = false
	g.mu.Unlock()
}

// Confirm fires the callback once for a pending request.
func (g *DeleteGate) Confirm(ctx context.Context) error {
	g.mu.Lock()
	if !g.armed {
		g.mu.Unlock()
		return ErrNotArmed
	}
	g.armed = false
	g.mu.Unlock()
	return g.fire(ctx)
}

// Bypass deletes immediately.
func (g *DeleteGate) Bypass(ctx context.Context) error {
	g.Cancel()
	return g.fire(ctx)
}

func (g *DeleteGate) fire(ctx context.Context) error {
	if g.onDelete == nil {
		return nil
	}
	return g.onDelete(ctx)
}

// ItemPath joins an itemsform path and index.
func ItemPath(path string, index int) string {
	return path + "." + strconv.Itoa(index)
}
