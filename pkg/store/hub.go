package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// subscriptionBuffer bounds pending snapshots per subscriber.
const subscriptionBuffer = 4

type lister func(ctx context.Context, collection string) ([]model.Record, error)

type subscriber struct {
	collection string
	conds      []Condition
	ch         chan Snapshot
}

// hub fans write notifications out to subscribers. Backends call publish
// after every successful write.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	list   lister
	logger *zap.SugaredLogger
}

func newHub(list lister, logger *zap.SugaredLogger) *hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &hub{subs: map[*subscriber]struct{}{}, list: list, logger: logger}
}

func (h *hub) subscribe(ctx context.Context, collection string, conds []Condition) (<-chan Snapshot, error) {
	if err := ValidateConditions(conds); err != nil {
		return nil, err
	}
	sub := &subscriber{collection: collection, conds: conds, ch: make(chan Snapshot, subscriptionBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	h.deliver(ctx, sub)

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.ch)
		h.mu.Unlock()
	}()
	return sub.ch, nil
}

func (h *hub) publish(ctx context.Context, collection string) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		if sub.collection == collection {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		h.deliver(ctx, sub)
	}
}

func (h *hub) deliver(ctx context.Context, sub *subscriber) {
	docs, err := h.list(context.WithoutCancel(ctx), sub.collection)
	snap := Snapshot{Collection: sub.collection, Err: err}
	if err == nil {
		snap.Documents = Filter(docs, sub.conds)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	select {
	case sub.ch <- snap:
		return
	default:
	}
	// Lagging subscriber: replace the oldest pending snapshot so the newest
	// state is always delivered.
	select {
	case <-sub.ch:
		h.logger.Debugw("store subscriber lagging, snapshot dropped", "collection", sub.collection)
	default:
	}
	select {
	case sub.ch <- snap:
	default:
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
