package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/notify"
)

func TestBroadcasterDropsForSlowSubscribers(t *testing.T) {
	b := newBroadcaster()
	ch, cancel := b.subscribe()

	for i := 0; i < toastBuffer+5; i++ {
		b.Notify(notify.Notification{Message: "n"})
	}
	assert.Len(t, ch, toastBuffer)

	cancel()
	cancel()
	b.Notify(notify.Notification{Message: "late"})
	assert.Len(t, ch, toastBuffer)
}

func TestTreeREST(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	res := request(t, srv, http.MethodPut, "/api/realtime/data/boards/b1", token, map[string]any{"title": "Todo"})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())

	res = request(t, srv, http.MethodPatch, "/api/realtime/data/boards/b1", token, map[string]any{"color": "red"})
	require.Equal(t, http.StatusNoContent, res.Code)

	res = request(t, srv, http.MethodPost, "/api/realtime/data/boards", token, map[string]any{"title": "Done"})
	require.Equal(t, http.StatusCreated, res.Code)
	key := decode[map[string]string](t, res)["key"]
	require.NotEmpty(t, key)

	res = request(t, srv, http.MethodGet, "/api/realtime/data/boards/b1", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	got := decode[treeMessage](t, res)
	assert.Equal(t, "boards/b1", got.Path)
	assert.Equal(t, map[string]any{"title": "Todo", "color": "red"}, got.Value)

	res = request(t, srv, http.MethodGet, "/api/realtime/data/boards?list=id", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	list := decode[[]model.Record](t, res)
	require.Len(t, list, 2)
	var ids []any
	for _, rec := range list {
		ids = append(ids, rec["id"])
	}
	assert.ElementsMatch(t, []any{"b1", key}, ids)

	res = request(t, srv, http.MethodGet, "/api/realtime/data?lists=id", token, nil)
	lists := decode[map[string][]model.Record](t, res)
	assert.Len(t, lists["boards"], 2)

	res = request(t, srv, http.MethodDelete, "/api/realtime/data/boards/b1", token, nil)
	require.Equal(t, http.StatusNoContent, res.Code)
	res = request(t, srv, http.MethodGet, "/api/realtime/data/boards/b1", token, nil)
	assert.Nil(t, decode[treeMessage](t, res).Value)

	res = request(t, srv, http.MethodGet, "/api/realtime/data", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func dial(t *testing.T, ctx context.Context, base, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + path
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestNotificationsSocket(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, ts.URL, "/api/notifications", token)

	// the socket is registered once the upgrade returns; retry until the
	// first toast lands.
	got := make(chan notify.Notification, 1)
	go func() {
		var n notify.Notification
		if err := wsjson.Read(ctx, conn, &n); err == nil {
			got <- n
		}
	}()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case n := <-got:
			assert.Equal(t, notify.LevelSuccess, n.Level)
			assert.Equal(t, "saved", n.Message)
			return
		case <-ticker.C:
			srv.toasts.Notify(notify.Notification{Level: notify.LevelSuccess, Message: "saved"})
		case <-ctx.Done():
			t.Fatal("no notification received")
		}
	}
}

func TestSubscribeSocketStreamsSnapshots(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	createProduct(t, srv, token, model.Record{"name": "Hammer", "category": "tools"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, ts.URL, "/api/collections/products/subscribe?field=category&value=tools", token)

	var first snapshotMessage
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Equal(t, "products", first.Collection)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "Hammer", first.Items[0]["name"])

	createProduct(t, srv, token, model.Record{"name": "Saw", "category": "tools"})
	createProduct(t, srv, token, model.Record{"name": "Ball", "category": "toys"})

	for {
		var next snapshotMessage
		require.NoError(t, wsjson.Read(ctx, conn, &next))
		if len(next.Items) == 2 {
			for _, rec := range next.Items {
				assert.Equal(t, "tools", rec["category"])
			}
			return
		}
	}
}

func TestTreeWatchSocket(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, ts.URL, "/api/realtime/watch?path=boards", token)

	var initial treeMessage
	require.NoError(t, wsjson.Read(ctx, conn, &initial))
	assert.Nil(t, initial.Value)

	res := request(t, srv, http.MethodPut, "/api/realtime/data/boards/b1", token, "x")
	require.Equal(t, http.StatusNoContent, res.Code)

	var ev treeMessage
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, map[string]any{"b1": "x"}, ev.Value)
}

func TestAuthWatchEndsOnLogout(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, ts.URL, "/api/auth/watch", token)

	var user map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &user))
	assert.Equal(t, "ada@example.com", user["email"])

	res := request(t, srv, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, res.Code)

	var ended any = "unset"
	require.NoError(t, wsjson.Read(ctx, conn, &ended))
	assert.Nil(t, ended)
}
