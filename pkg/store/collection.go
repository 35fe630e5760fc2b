package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
)

// Collection is a store bound to one collection that reports outcomes
// through a notifier: successes with the caller message, failures with the
// taxonomy message. Batch operations stop at the first store failure;
// records without an id are reported and skipped.
type Collection struct {
	store    Store
	name     string
	notifier notify.Notifier
	logger   *zap.SugaredLogger
}

// CollectionOption customises a Collection.
type CollectionOption func(*Collection)

// WithNotifier routes toasts to n.
func WithNotifier(n notify.Notifier) CollectionOption {
	return func(c *Collection) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the collection logger.
func WithLogger(logger *zap.SugaredLogger) CollectionOption {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollection binds store to the named collection.
func NewCollection(store Store, name string, opts ...CollectionOption) *Collection {
	c := &Collection{
		store:    store,
		name:     name,
		notifier: notify.Discard,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Store returns the underlying store.
func (c *Collection) Store() Store { return c.store }

func (c *Collection) Add(ctx context.Context, doc model.Record) (string, error) {
	id, err := c.store.Add(ctx, c.name, doc)
	if err != nil {
		return "", c.fail(err)
	}
	return id, nil
}

// Update writes patch to the record with id. An empty id is reported and
// returns ErrMissingID.
func (c *Collection) Update(ctx context.Context, id string, patch model.Record) error {
	if id == "" {
		return c.fail(missingID(c.name))
	}
	if err := c.store.Update(ctx, c.name, id, patch); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	if id == "" {
		return c.fail(missingID(c.name))
	}
	if err := c.store.Delete(ctx, c.name, id); err != nil {
		return c.fail(err)
	}
	return nil
}

// Set writes doc at id; an empty id allocates a new document.
func (c *Collection) Set(ctx context.Context, id string, doc model.Record, merge bool) (string, error) {
	if id == "" {
		return c.Add(ctx, doc)
	}
	if err := c.store.Set(ctx, c.name, id, doc, merge); err != nil {
		return "", c.fail(err)
	}
	return id, nil
}

func (c *Collection) Get(ctx context.Context, id string) (model.Record, error) {
	return c.store.Get(ctx, c.name, id)
}

func (c *Collection) List(ctx context.Context) ([]model.Record, error) {
	return c.store.List(ctx, c.name)
}

func (c *Collection) Where(ctx context.Context, conds ...Condition) ([]model.Record, error) {
	return c.store.Where(ctx, c.name, conds...)
}

func (c *Collection) Subscribe(ctx context.Context, conds ...Condition) (<-chan Snapshot, error) {
	return c.store.Subscribe(ctx, c.name, conds...)
}

// AddMany adds every doc and returns the new ids in order. message, when
// set, is sent as a success toast once all adds went through.
func (c *Collection) AddMany(ctx context.Context, docs []model.Record, message string) ([]string, error) {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := c.store.Add(ctx, c.name, doc)
		if err != nil {
			return ids, c.fail(err)
		}
		ids = append(ids, id)
	}
	notify.Success(c.notifier, message)
	return ids, nil
}

// UpdateMany updates every record by its id. The id key is not written.
func (c *Collection) UpdateMany(ctx context.Context, docs []model.Record, message string) error {
	var skipped []error
	for _, doc := range docs {
		id := model.Stringify(doc[IDKey])
		if id == "" {
			skipped = append(skipped, c.fail(missingID(c.name)))
			continue
		}
		if err := c.store.Update(ctx, c.name, id, withoutID(doc)); err != nil {
			return c.fail(err)
		}
	}
	notify.Success(c.notifier, message)
	return errors.Join(skipped...)
}

// DeleteMany deletes every record by its id.
func (c *Collection) DeleteMany(ctx context.Context, docs []model.Record, message string) error {
	var skipped []error
	for _, doc := range docs {
		id := model.Stringify(doc[IDKey])
		if id == "" {
			skipped = append(skipped, c.fail(missingID(c.name)))
			continue
		}
		if err := c.store.Delete(ctx, c.name, id); err != nil {
			return c.fail(err)
		}
	}
	notify.Success(c.notifier, message)
	return errors.Join(skipped...)
}

// DeleteBy deletes every document matching field == value and returns how
// many were removed.
func (c *Collection) DeleteBy(ctx context.Context, field string, value any) (int, error) {
	docs, err := c.store.Where(ctx, c.name, Eq(field, value))
	if err != nil {
		return 0, c.fail(err)
	}
	deleted := 0
	for _, doc := range docs {
		if err := c.store.Delete(ctx, c.name, model.Stringify(doc[IDKey])); err != nil {
			return deleted, c.fail(err)
		}
		deleted++
	}
	c.logger.Debugw("deleted by field", "collection", c.name, "field", field, "count", deleted)
	return deleted, nil
}

func (c *Collection) fail(err error) error {
	notify.Error(c.notifier, err, "The operation failed.")
	c.logger.Warnw("collection operation failed", "collection", c.name, "error", err)
	return fmt.Errorf("store: %s: %w", c.name, err)
}
