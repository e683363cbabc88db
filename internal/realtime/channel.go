// Package realtime keeps each session's notification list in sync with the
// backend's push channel.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
)

const EventNotification = "notification"

var ErrClosed = errors.New("channel closed")

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// Event is one frame pushed by the backend.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Lister interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
}

type Options struct {
	URL    string
	Token  string
	Cache  *query.Cache
	Key    query.Key
	Lister Lister
	Dialer *websocket.Dialer
	// OnEvent observes every accepted notification.
	OnEvent func(models.Notification)
}

// Channel is one authenticated connection. Open starts it, Close ends it; a
// closed channel cannot be reopened.
type Channel struct {
	opts Options

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
	connected bool
	subs      map[int]chan models.Notification
	nextSub   int
}

func NewChannel(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Channel{opts: opts, subs: make(map[int]chan models.Notification)}
}

// Open starts connecting in the background and keeps reconnecting until ctx
// ends or Close is called.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Close disconnects and waits for the reader to stop.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel, done, conn := c.cancel, c.done, c.conn
	for id, sub := range c.subs {
		close(sub)
		delete(c.subs, id)
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

// Connected reports whether a socket is currently up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Token is the bearer token the channel authenticates with.
func (c *Channel) Token() string {
	return c.opts.Token
}

// Subscribe streams accepted notifications until cancel is called or the
// channel closes. Slow subscribers miss events rather than block the reader.
func (c *Channel) Subscribe() (<-chan models.Notification, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan models.Notification, 16)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	backoff := minBackoff
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Realtime] Dial failed: %v (retry in %s)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		if !c.attach(conn) {
			conn.Close()
			return
		}
		err = c.read(ctx, conn)
		c.detach(conn)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[Realtime] Connection lost: %v", err)
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opts.Token)

	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (c *Channel) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	c.connected = true
	return true
}

func (c *Channel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Channel) read(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("[Realtime] Dropping malformed frame: %v", err)
			continue
		}
		if event.Event != EventNotification {
			continue
		}

		var n models.Notification
		if err := json.Unmarshal(event.Data, &n); err != nil {
			log.Printf("[Realtime] Dropping malformed notification: %v", err)
			continue
		}
		c.handle(ctx, n)
	}
}

// handle prepends n to the cached list, then replaces the list with the
// backend's. Events are handled one at a time, so the last refetch to finish
// is the one that stays.
func (c *Channel) handle(ctx context.Context, n models.Notification) {
	query.Update(c.opts.Cache, c.opts.Key, func(current []models.Notification, ok bool) []models.Notification {
		return append([]models.Notification{n}, current...)
	})

	if c.opts.OnEvent != nil {
		c.opts.OnEvent(n)
	}
	c.publish(n)

	list, err := c.opts.Lister.ListNotifications(ctx)
	if err != nil {
		log.Printf("[Realtime] Refetch failed: %v", err)
		c.opts.Cache.Invalidate(c.opts.Key)
		return
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.opts.Cache.Set(c.opts.Key, list)
}

func (c *Channel) publish(n models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		select {
		case sub <- n:
		default:
		}
	}
}
