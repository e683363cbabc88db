package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
)

type pushServer struct {
	*httptest.Server
	mu     sync.Mutex
	auth   []string
	frames chan string
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{frames: make(chan string, 8)}
	upgrader := websocket.Upgrader{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.auth = append(ps.auth, r.Header.Get("Authorization"))
		ps.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for frame := range ps.frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(func() {
		close(ps.frames)
		ps.Close()
	})
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

func (ps *pushServer) authHeaders() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]string(nil), ps.auth...)
}

type stubLister struct {
	mu    sync.Mutex
	list  []models.Notification
	err   error
	calls int
}

func (s *stubLister) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.list, s.err
}

func (s *stubLister) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const frame = `{"event":"notification","data":{"id":7,"title":"Order shipped","message":"Order #101 is on its way"}}`

func TestChannelRefetchOverwritesPrepend(t *testing.T) {
	ps := newPushServer(t)
	cache := query.New(time.Minute)
	key := query.Key{"user:1", "notifications"}
	cache.Set(key, []models.Notification{{ID: 3, Title: "Welcome"}})

	lister := &stubLister{list: []models.Notification{{ID: 7, Title: "Order shipped"}, {ID: 3, Title: "Welcome"}, {ID: 1, Title: "Older"}}}
	var seen []int64
	var seenMu sync.Mutex
	ch := NewChannel(Options{
		URL: ps.wsURL(), Token: "tok", Cache: cache, Key: key, Lister: lister,
		OnEvent: func(n models.Notification) {
			seenMu.Lock()
			seen = append(seen, n.ID)
			seenMu.Unlock()
		},
	})
	require.NoError(t, ch.Open(context.Background()))
	defer ch.Close()

	require.Eventually(t, ch.Connected, 2*time.Second, 10*time.Millisecond)
	ps.frames <- frame

	require.Eventually(t, func() bool { return lister.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		list, _ := query.Peek[[]models.Notification](cache, key)
		return len(list) == 3
	}, 2*time.Second, 10*time.Millisecond)

	list, _ := query.Peek[[]models.Notification](cache, key)
	assert.Equal(t, int64(7), list[0].ID)
	assert.Equal(t, int64(1), list[2].ID)
	assert.Equal(t, []string{"Bearer tok"}, ps.authHeaders())

	seenMu.Lock()
	assert.Equal(t, []int64{7}, seen)
	seenMu.Unlock()
}

func TestChannelKeepsPrependWhenRefetchFails(t *testing.T) {
	ps := newPushServer(t)
	cache := query.New(time.Minute)
	key := query.Key{"user:1", "notifications"}
	cache.Set(key, []models.Notification{{ID: 3}})

	lister := &stubLister{err: errors.New("backend down")}
	ch := NewChannel(Options{URL: ps.wsURL(), Token: "tok", Cache: cache, Key: key, Lister: lister})
	require.NoError(t, ch.Open(context.Background()))
	defer ch.Close()

	require.Eventually(t, ch.Connected, 2*time.Second, 10*time.Millisecond)
	ps.frames <- `{"event":"ping"}`
	ps.frames <- `not json`
	ps.frames <- frame

	require.Eventually(t, func() bool { return lister.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return cache.State(key).IsStale }, 2*time.Second, 10*time.Millisecond)

	list, ok := query.Peek[[]models.Notification](cache, key)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, int64(7), list[0].ID)
	assert.Equal(t, int64(3), list[1].ID)
}

func TestChannelSubscribe(t *testing.T) {
	ps := newPushServer(t)
	cache := query.New(time.Minute)
	lister := &stubLister{}
	ch := NewChannel(Options{URL: ps.wsURL(), Token: "tok", Cache: cache, Key: query.Key{"n"}, Lister: lister})
	require.NoError(t, ch.Open(context.Background()))

	events, cancel := ch.Subscribe()
	defer cancel()

	require.Eventually(t, ch.Connected, 2*time.Second, 10*time.Millisecond)
	ps.frames <- frame

	select {
	case n := <-events:
		assert.Equal(t, "Order shipped", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	ch.Close()
	_, open := <-events
	assert.False(t, open)
	assert.False(t, ch.Connected())
	assert.ErrorIs(t, ch.Open(context.Background()), ErrClosed)
}

func TestChannelCloseWithoutServer(t *testing.T) {
	ch := NewChannel(Options{URL: "ws://127.0.0.1:1/ws", Token: "tok", Cache: query.New(time.Minute), Key: query.Key{"n"}, Lister: &stubLister{}})
	require.NoError(t, ch.Open(context.Background()))

	done := make(chan struct{})
	go func() {
		ch.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
}
