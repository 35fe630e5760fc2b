// Package realtime is a keyed JSON tree addressed by slash-separated paths
// ("lists/groceries/items"). Values are set, merged or pushed under generated
// time-ordered keys, and watchers receive the value at their path after every
// write that touches it.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/model"
)

var (
	// ErrPath reports a write below a scalar value or at the root.
	ErrPath = errors.New("realtime: invalid path")
)

const watchBuffer = 4

// Event carries the value at a watched path.
type Event struct {
	Path  string
	Value any
}

type watcher struct {
	path []string
	ch   chan Event
}

// Tree is an in-memory realtime store. It is safe for concurrent use.
type Tree struct {
	mu       sync.RWMutex
	root     map[string]any
	watchers map[*watcher]struct{}
	newKey   func() string
	logger   *zap.SugaredLogger
}

// Option customises a Tree.
type Option func(*Tree)

// WithKeyGenerator overrides push keys. Keys must sort in creation order.
func WithKeyGenerator(fn func() string) Option {
	return func(t *Tree) {
		if fn != nil {
			t.newKey = fn
		}
	}
}

// WithLogger sets the tree logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(t *Tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New returns an empty tree.
func New(opts ...Option) *Tree {
	t := &Tree{
		root:     map[string]any{},
		watchers: map[*watcher]struct{}{},
		newKey:   pushKey,
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// pushKey returns a UUIDv7 string; its leading timestamp makes keys sort in
// creation order.
func pushKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func split(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Set replaces the value at path. A nil value removes it.
func (t *Tree) Set(_ context.Context, path string, value any) error {
	parts := split(path)
	if len(parts) == 0 {
		return fmt.Errorf("%w: cannot set the root", ErrPath)
	}
	t.mu.Lock()
	err := t.write(parts, model.CloneValue(value))
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.notify(parts)
	return nil
}

// Update merges the keys of patch into the object at path.
func (t *Tree) Update(_ context.Context, path string, patch map[string]any) error {
	parts := split(path)
	t.mu.Lock()
	target, err := t.objectAt(parts, true)
	if err == nil {
		for k, v := range patch {
			if v == nil {
				delete(target, k)
				continue
			}
			target[k] = model.CloneValue(v)
		}
	}
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.notify(parts)
	return nil
}

// Push stores value under a new key below path and returns the key.
func (t *Tree) Push(ctx context.Context, path string, value any) (string, error) {
	key := t.newKey()
	if err := t.Set(ctx, strings.TrimSuffix(path, "/")+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes the value at path.
func (t *Tree) Remove(ctx context.Context, path string) error {
	return t.Set(ctx, path, nil)
}

// Get returns a copy of the value at path, nil when absent.
func (t *Tree) Get(_ context.Context, path string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return model.CloneValue(t.read(split(path)))
}

// Subscribe streams the value at path until ctx is done. The current value
// is sent first. Lagging watchers only keep the newest events.
func (t *Tree) Subscribe(ctx context.Context, path string) <-chan Event {
	w := &watcher{path: split(path), ch: make(chan Event, watchBuffer)}

	t.mu.Lock()
	t.watchers[w] = struct{}{}
	t.send(w)
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.watchers, w)
		close(w.ch)
		t.mu.Unlock()
	}()
	return w.ch
}

// write must hold the lock.
func (t *Tree) write(parts []string, value any) error {
	parent, err := t.objectAt(parts[:len(parts)-1], value != nil)
	if err != nil {
		if value == nil && errors.Is(err, errAbsent) {
			return nil
		}
		return err
	}
	leaf := parts[len(parts)-1]
	if value == nil {
		delete(parent, leaf)
		return nil
	}
	parent[leaf] = value
	return nil
}

var errAbsent = errors.New("realtime: absent")

// objectAt walks to the object at parts, creating intermediate objects when
// create is set.
func (t *Tree) objectAt(parts []string, create bool) (map[string]any, error) {
	node := t.root
	for i, part := range parts {
		next, ok := node[part]
		if !ok || next == nil {
			if !create {
				return nil, errAbsent
			}
			child := map[string]any{}
			node[part] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", ErrPath, strings.Join(parts[:i+1], "/"))
		}
		node = child
	}
	return node, nil
}

func (t *Tree) read(parts []string) any {
	var node any = t.root
	for _, part := range parts {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = obj[part]
		if !ok {
			return nil
		}
	}
	return node
}

// notify wakes the watchers whose path is an ancestor or descendant of
// the written path.
func (t *Tree) notify(written []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for w := range t.watchers {
		if related(w.path, written) {
			t.send(w)
		}
	}
}

// send must hold the lock.
func (t *Tree) send(w *watcher) {
	ev := Event{Path: strings.Join(w.path, "/"), Value: model.CloneValue(t.read(w.path))}
	select {
	case w.ch <- ev:
		return
	default:
	}
	select {
	case <-w.ch:
		t.logger.Debugw("realtime watcher lagging, event dropped", "path", ev.Path)
	default:
	}
	select {
	case w.ch <- ev:
	default:
	}
}

func related(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ObjectToArray converts an object of objects into a slice ordered by key.
// When storeKeyUnder is set each element receives its key under that name.
// Non-object values are skipped.
func ObjectToArray(obj map[string]any, storeKeyUnder string) []model.Record {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.Record, 0, len(keys))
	for _, k := range keys {
		child, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		rec := model.CloneRecord(child)
		if storeKeyUnder != "" {
			rec[storeKeyUnder] = k
		}
		out = append(out, rec)
	}
	return out
}

// ObjectsListToArraysList applies ObjectToArray to every child of obj.
func ObjectsListToArraysList(obj map[string]any, storeKeyUnder string) map[string][]model.Record {
	out := make(map[string][]model.Record, len(obj))
	for k, v := range obj {
		child, _ := v.(map[string]any)
		out[k] = ObjectToArray(child, storeKeyUnder)
	}
	return out
}
