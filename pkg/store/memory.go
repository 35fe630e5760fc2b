package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/model"
)

type memoryDoc struct {
	seq  uint64
	data model.Record
}

// Memory is an in-process Store.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryDoc
	seq         uint64
	newID       func() string
	hub         *hub
}

// MemoryOption customises a Memory store.
type MemoryOption func(*Memory)

// WithIDGenerator overrides generated document ids.
func WithIDGenerator(fn func() string) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithMemoryLogger sets the logger used for subscription diagnostics.
func WithMemoryLogger(logger *zap.SugaredLogger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.hub.logger = logger
		}
	}
}

// NewMemory returns an empty store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		collections: map[string]map[string]memoryDoc{},
		newID:       uuid.NewString,
	}
	m.hub = newHub(m.List, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Memory) Add(ctx context.Context, collection string, doc model.Record) (string, error) {
	id := m.newID()
	m.mu.Lock()
	m.put(collection, id, withoutID(doc))
	m.mu.Unlock()
	m.hub.publish(ctx, collection)
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, doc model.Record, mergeDoc bool) error {
	if id == "" {
		return missingID(collection)
	}
	m.mu.Lock()
	data := withoutID(doc)
	if existing, ok := m.collections[collection][id]; ok && mergeDoc {
		data = merge(existing.data, data)
	}
	m.put(collection, id, data)
	m.mu.Unlock()
	m.hub.publish(ctx, collection)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch model.Record) error {
	if id == "" {
		return missingID(collection)
	}
	m.mu.Lock()
	existing, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return notFound(collection, id)
	}
	m.put(collection, id, merge(existing.data, withoutID(patch)))
	m.mu.Unlock()
	m.hub.publish(ctx, collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if id == "" {
		return missingID(collection)
	}
	m.mu.Lock()
	delete(m.collections[collection], id)
	m.mu.Unlock()
	m.hub.publish(ctx, collection)
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, notFound(collection, id)
	}
	return withID(doc.data, id), nil
}

func (m *Memory) List(_ context.Context, collection string) ([]model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return docs[ids[i]].seq < docs[ids[j]].seq })
	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, withID(docs[id].data, id))
	}
	return out, nil
}

func (m *Memory) Where(ctx context.Context, collection string, conds ...Condition) ([]model.Record, error) {
	if err := ValidateConditions(conds); err != nil {
		return nil, err
	}
	docs, err := m.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return Filter(docs, conds), nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, conds ...Condition) (<-chan Snapshot, error) {
	return m.hub.subscribe(ctx, collection, conds)
}

func (m *Memory) Close() error { return nil }

// put must be called with the write lock held. Documents keep their
// insertion sequence across overwrites.
func (m *Memory) put(collection, id string, data model.Record) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = map[string]memoryDoc{}
		m.collections[collection] = docs
	}
	seq := docs[id].seq
	if _, exists := docs[id]; !exists {
		m.seq++
		seq = m.seq
	}
	docs[id] = memoryDoc{seq: seq, data: data}
}
