package form

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

// ItemUIDKey is the key holding the generated identifier of itemsform
// entries.
const ItemUIDKey = "uid"

// SubmitFunc receives the committed values.
type SubmitFunc func(ctx context.Context, values model.Record) error

// RecordValidator returns whole-record errors keyed by dotted path.
type RecordValidator func(values model.Record) map[string]string

// Option configures a Form.
type Option func(*config)

type config struct {
	noValidation bool
	validators   []RecordValidator
	submit       SubmitFunc
	widgets      *widgets.Registry
	records      []model.Record
	newID        func() string
	logger       *zap.SugaredLogger
}

// WithNoValidation commits raw values without running validators.
func WithNoValidation() Option {
	return func(cfg *config) { cfg.noValidation = true }
}

// WithValidator adds a whole-record validator.
func WithValidator(v RecordValidator) Option {
	return func(cfg *config) {
		if v != nil {
			cfg.validators = append(cfg.validators, v)
		}
	}
}

// WithSubmit sets the commit callback.
func WithSubmit(fn SubmitFunc) Option {
	return func(cfg *config) { cfg.submit = fn }
}

// WithWidgets overrides the widget registry used by Inputs.
func WithWidgets(reg *widgets.Registry) Option {
	return func(cfg *config) { cfg.widgets = reg }
}

// WithRecords supplies the collection records option generators read.
func WithRecords(records []model.Record) Option {
	return func(cfg *config) { cfg.records = records }
}

// WithIDGenerator overrides the item uid generator.
func WithIDGenerator(fn func() string) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Form is the editing state of one record.
type Form struct {
	mu     sync.RWMutex
	fields []model.Field
	values model.Record
	errors map[string]string
	cfg    config
}

// New builds a form over a deep copy of initial, merging itemsform defaults
// into existing entries.
func New(fields []model.Field, initial model.Record, opts ...Option) *Form {
	cfg := config{
		widgets: widgets.NewRegistry(),
		newID:   uuid.NewString,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Form{
		fields: fields,
		values: InitialValues(fields, initial),
		cfg:    cfg,
	}
}

// InitialValues deep-copies record and merges every itemsform's defaults
// under its entries; keys already present in an entry win.
func InitialValues(fields []model.Field, record model.Record) model.Record {
	values := model.CloneRecord(record)
	if values == nil {
		values = model.Record{}
	}
	mergeDefaults(fields, values)
	return values
}

func mergeDefaults(fields []model.Field, values map[string]any) {
	for _, field := range fields {
		if field.Type != model.FieldTypeItemsForm || field.Key == "" {
			continue
		}
		items := asItems(values[field.Key])
		if items == nil {
			continue
		}
		for i, raw := range items {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if field.Items != nil {
				for k, v := range field.Items.Defaults {
					if _, exists := entry[k]; !exists {
						entry[k] = model.CloneValue(v)
					}
				}
			}
			mergeDefaults(field.Nested, entry)
			items[i] = entry
		}
		values[field.Key] = items
	}
}

// Fields returns the descriptors.
func (f *Form) Fields() []model.Field {
	return f.fields
}

// Values returns a deep copy of the current values.
func (f *Form) Values() model.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return model.CloneRecord(f.values)
}

// Get reads a dotted path.
func (f *Form) Get(path string) any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return model.CloneValue(model.Lookup(f.values, path))
}

// Set writes a dotted path and clears its error.
func (f *Form) Set(path string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := setPath(f.values, path, value); err != nil {
		return err
	}
	delete(f.errors, path)
	return nil
}

// Errors returns the last validation errors keyed by dotted path.
func (f *Form) Errors() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}
