package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
	"github.com/goliatone/go-crudkit/pkg/realtime"
	"github.com/goliatone/go-crudkit/pkg/store"
)

// toastBuffer is how many notifications a slow socket may lag behind
// before new ones are dropped for it.
const toastBuffer = 16

// broadcaster fans notifications out to every connected socket.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan notify.Notification
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan notify.Notification)}
}

// Notify never blocks; full subscribers miss the notification.
func (b *broadcaster) Notify(n notify.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (b *broadcaster) subscribe() (<-chan notify.Notification, func()) {
	ch := make(chan notify.Notification, toastBuffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

type snapshotMessage struct {
	Collection string         `json:"collection"`
	Items      []model.Record `json:"items"`
	Error      string         `json:"error,omitempty"`
}

type treeMessage struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// accept upgrades the request. The returned context ends when the client
// goes away.
func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, context.Context, bool) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		loggerFrom(r.Context()).Debugw("websocket accept", "path", r.URL.Path, "error", err)
		return nil, nil, false
	}
	return conn, conn.CloseRead(r.Context()), true
}

// stream writes every value from ch until ch closes, the client leaves or
// a write fails.
func stream[T any](ctx context.Context, r *http.Request, conn *websocket.Conn, ch <-chan T, encode func(T) any) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, conn, encode(v)); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					loggerFrom(r.Context()).Debugw("websocket write", "path", r.URL.Path, "error", err)
				}
				return
			}
		}
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	conn, ctx, ok := accept(w, r)
	if !ok {
		return
	}
	defer conn.CloseNow()

	ch, cancel := s.toasts.subscribe()
	defer cancel()
	stream(ctx, r, conn, ch, func(n notify.Notification) any { return n })
}

// handleSubscribe streams snapshots of a collection. field and value narrow
// the documents to one equality match.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	c := collectionFrom(r.Context())
	var conds []store.Condition
	if field := r.URL.Query().Get("field"); field != "" {
		conds = append(conds, store.Eq(field, scalar(r.URL.Query().Get("value"))))
	}

	conn, ctx, ok := accept(w, r)
	if !ok {
		return
	}
	defer conn.CloseNow()

	snaps, err := c.docs.Subscribe(ctx, conds...)
	if err != nil {
		_ = wsjson.Write(ctx, conn, snapshotMessage{Collection: c.schema.Name, Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	stream(ctx, r, conn, snaps, func(snap store.Snapshot) any {
		msg := snapshotMessage{Collection: c.schema.Name, Items: make([]model.Record, 0, len(snap.Documents))}
		for _, doc := range snap.Documents {
			msg.Items = append(msg.Items, c.expose(doc))
		}
		if snap.Err != nil {
			msg.Error = snap.Err.Error()
		}
		return msg
	})
}

// handleAuthWatch streams the signed-in user; null means the session ended.
func (s *Server) handleAuthWatch(w http.ResponseWriter, r *http.Request) {
	v, _ := viewerFrom(r.Context())
	conn, ctx, ok := accept(w, r)
	if !ok {
		return
	}
	defer conn.CloseNow()

	users, err := s.auth.Observe(ctx, v.token)
	if err != nil {
		_ = wsjson.Write(ctx, conn, nil)
		conn.Close(websocket.StatusPolicyViolation, "session ended")
		return
	}
	stream(ctx, r, conn, users, func(u *auth.User) any { return u })
}

func treePath(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}

func (s *Server) handleTreeWatch(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Query().Get("path"), "/")
	conn, ctx, ok := accept(w, r)
	if !ok {
		return
	}
	defer conn.CloseNow()

	stream(ctx, r, conn, s.tree.Subscribe(ctx, path), func(ev realtime.Event) any {
		return treeMessage{Path: ev.Path, Value: ev.Value}
	})
}

// handleTreeGet returns the value at the path. With ?list=<key> an object
// of objects comes back as a list carrying each key under <key>; ?lists
// does the same one level deeper.
func (s *Server) handleTreeGet(w http.ResponseWriter, r *http.Request) {
	value := s.tree.Get(r.Context(), treePath(r))
	obj, isObject := value.(map[string]any)
	q := r.URL.Query()
	switch {
	case isObject && q.Has("list"):
		writeJSON(w, http.StatusOK, realtime.ObjectToArray(obj, q.Get("list")))
	case isObject && q.Has("lists"):
		writeJSON(w, http.StatusOK, realtime.ObjectsListToArraysList(obj, q.Get("lists")))
	default:
		writeJSON(w, http.StatusOK, treeMessage{Path: treePath(r), Value: value})
	}
}

func (s *Server) handleTreeSet(w http.ResponseWriter, r *http.Request) {
	var value any
	if err := decodeJSON(r, &value); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tree.Set(r.Context(), treePath(r), value); err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTreeUpdate(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tree.Update(r.Context(), treePath(r), patch); err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTreePush(w http.ResponseWriter, r *http.Request) {
	var value any
	if err := decodeJSON(r, &value); err != nil {
		writeError(w, r, err)
		return
	}
	key, err := s.tree.Push(r.Context(), treePath(r), value)
	if err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) handleTreeRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.tree.Remove(r.Context(), treePath(r)); err != nil {
		writeError(w, r, badRequest("%v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
