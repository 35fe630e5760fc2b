package realtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudkit/pkg/model"
)

func TestSetUpdateGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tree := New()

	if err := tree.Set(ctx, "lists/groceries", map[string]any{"title": "Groceries"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tree.Update(ctx, "lists/groceries", map[string]any{"owner": "ann"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	want := map[string]any{"title": "Groceries", "owner": "ann"}
	if diff := cmp.Diff(want, tree.Get(ctx, "lists/groceries")); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
	if got := tree.Get(ctx, "lists/groceries/title"); got != "Groceries" {
		t.Fatalf("expected nested read, got %v", got)
	}

	if err := tree.Set(ctx, "lists/groceries/title/deeper", 1); !errors.Is(err, ErrPath) {
		t.Fatalf("expected ErrPath writing below a scalar, got %v", err)
	}
	if err := tree.Set(ctx, "/", 1); !errors.Is(err, ErrPath) {
		t.Fatalf("expected ErrPath for root, got %v", err)
	}

	if err := tree.Remove(ctx, "lists/groceries/owner"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := tree.Remove(ctx, "missing/branch"); err != nil {
		t.Fatalf("removing a missing branch should be a no-op: %v", err)
	}
	if got := tree.Get(ctx, "lists/groceries/owner"); got != nil {
		t.Fatalf("expected owner removed, got %v", got)
	}
}

func TestPushKeysAreOrdered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	n := 0
	tree := New(WithKeyGenerator(func() string {
		n++
		return fmt.Sprintf("k%03d", n)
	}))

	for _, name := range []string{"milk", "eggs", "bread"} {
		if _, err := tree.Push(ctx, "items", map[string]any{"name": name}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	items, _ := tree.Get(ctx, "items").(map[string]any)
	got := ObjectToArray(items, "id")
	want := []model.Record{
		{"id": "k001", "name": "milk"},
		{"id": "k002", "name": "eggs"},
		{"id": "k003", "name": "bread"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultPushKeysSortByTime(t *testing.T) {
	t.Parallel()
	prev := pushKey()
	for i := 0; i < 50; i++ {
		next := pushKey()
		if next <= prev {
			t.Fatalf("push keys out of order: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestSubscribe(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree := New()

	events := tree.Subscribe(ctx, "lists/a")
	if ev := next(t, events); ev.Value != nil {
		t.Fatalf("expected empty initial value, got %v", ev.Value)
	}

	if err := tree.Set(ctx, "lists/a/title", "A"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"title": "A"}, next(t, events).Value); diff != "" {
		t.Fatalf("descendant write mismatch (-want +got):\n%s", diff)
	}

	if err := tree.Set(ctx, "lists/b", "unrelated"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tree.Set(ctx, "lists", map[string]any{"a": map[string]any{"title": "B"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"title": "B"}, next(t, events).Value); diff != "" {
		t.Fatalf("ancestor write mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectsListToArraysList(t *testing.T) {
	t.Parallel()
	in := map[string]any{
		"todo": map[string]any{"b": map[string]any{"t": 2}, "a": map[string]any{"t": 1}},
		"done": nil,
	}
	want := map[string][]model.Record{
		"todo": {{"t": 1, "key": "a"}, {"t": 2, "key": "b"}},
		"done": {},
	}
	if diff := cmp.Diff(want, ObjectsListToArraysList(in, "key")); diff != "" {
		t.Fatalf("conversion mismatch (-want +got):\n%s", diff)
	}
	if got := ObjectToArray(map[string]any{"x": "scalar"}, ""); len(got) != 0 {
		t.Fatalf("scalars should be skipped, got %v", got)
	}
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}
