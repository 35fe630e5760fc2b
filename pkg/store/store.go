// Package store is the document store behind collections, user metadata and
// upload metadata. Documents are schemaless records addressed by collection
// and id; every returned document carries its id under the "id" key.
//
// Backends: Memory (tests, demos), SQLite (modernc.org/sqlite, one JSON
// document per row) and Mongo (go.mongodb.org/mongo-driver). Writes are
// last-write-wins. Subscriptions receive a fresh snapshot after every write to
// the collection; slow subscribers lose intermediate snapshots instead of
// blocking writers.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/goliatone/go-crudkit/pkg/apperr"
	"github.com/goliatone/go-crudkit/pkg/model"
)

// IDKey is the key documents carry their id under.
const IDKey = "id"

var (
	// ErrNotFound is wrapped by errors returned for missing documents.
	ErrNotFound = errors.New("store: document not found")
	// ErrMissingID reports an update or delete without an identifier.
	ErrMissingID = errors.New("store: item has no identifier")
	// ErrOperator reports an unsupported condition operator.
	ErrOperator = errors.New("store: unsupported operator")
)

// Operators accepted by Where and Subscribe.
const (
	OpEquals    = "=="
	OpNotEquals = "!="
)

// Condition is a single equality clause, e.g. {"userId", "==", uid}.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Eq is shorthand for an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEquals, Value: value}
}

// Snapshot is the state of a subscription after a write.
type Snapshot struct {
	Collection string
	Documents  []model.Record
	Err        error
}

// Store is the document store contract.
type Store interface {
	// Add inserts doc under a generated id and returns it.
	Add(ctx context.Context, collection string, doc model.Record) (string, error)
	// Set writes doc at id. With merge the top-level keys are merged into
	// the existing document, otherwise the document is replaced.
	Set(ctx context.Context, collection, id string, doc model.Record, merge bool) error
	// Update merges patch into an existing document.
	Update(ctx context.Context, collection, id string, patch model.Record) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (model.Record, error)
	List(ctx context.Context, collection string) ([]model.Record, error)
	Where(ctx context.Context, collection string, conds ...Condition) ([]model.Record, error)
	// Subscribe streams snapshots of the documents matching conds until ctx
	// is done. The first snapshot is sent immediately.
	Subscribe(ctx context.Context, collection string, conds ...Condition) (<-chan Snapshot, error)
	Close() error
}

func notFound(collection, id string) error {
	return apperr.New(apperr.CodeNotFound, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id))
}

func missingID(collection string) error {
	e := apperr.New(apperr.CodeInvalidArgument, fmt.Errorf("%w (%s)", ErrMissingID, collection))
	e.Message = "Item not identifiable."
	return e
}

// ValidateConditions rejects unknown operators and empty fields.
func ValidateConditions(conds []Condition) error {
	for _, c := range conds {
		if c.Field == "" {
			return fmt.Errorf("store: condition without field")
		}
		if c.Op != OpEquals && c.Op != OpNotEquals {
			return fmt.Errorf("%w %q", ErrOperator, c.Op)
		}
	}
	return nil
}

// Matches reports whether doc satisfies every condition. Field values are
// resolved with dotted paths.
func Matches(doc model.Record, conds []Condition) bool {
	for _, c := range conds {
		eq := equal(model.Lookup(doc, c.Field), c.Value)
		if c.Op == OpNotEquals {
			eq = !eq
		}
		if !eq {
			return false
		}
	}
	return true
}

// Filter returns the documents matching conds.
func Filter(docs []model.Record, conds []Condition) []model.Record {
	if len(conds) == 0 {
		return docs
	}
	out := make([]model.Record, 0, len(docs))
	for _, doc := range docs {
		if Matches(doc, conds) {
			out = append(out, doc)
		}
	}
	return out
}

func equal(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func withID(doc model.Record, id string) model.Record {
	out := model.CloneRecord(doc)
	if out == nil {
		out = model.Record{}
	}
	out[IDKey] = id
	return out
}

func withoutID(doc model.Record) model.Record {
	out := model.CloneRecord(doc)
	if out == nil {
		out = model.Record{}
	}
	delete(out, IDKey)
	return out
}

func merge(dst, src model.Record) model.Record {
	out := model.CloneRecord(dst)
	if out == nil {
		out = model.Record{}
	}
	for k, v := range model.CloneRecord(src) {
		out[k] = v
	}
	return out
}
