package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/realtime"
)

const streamHeartbeat = 25 * time.Second

// NotificationHandler serves the notification list kept fresh by the realtime
// channel.
type NotificationHandler struct {
	cache    *query.Cache
	channels *realtime.Manager
}

func NewNotificationHandler(cache *query.Cache, channels *realtime.Manager) *NotificationHandler {
	return &NotificationHandler{cache: cache, channels: channels}
}

type notificationList struct {
	Items       []models.Notification `json:"items"`
	UnreadCount int                   `json:"unreadCount"`
}

func listNotifications(items []models.Notification) notificationList {
	out := notificationList{Items: items}
	if out.Items == nil {
		out.Items = []models.Notification{}
	}
	for _, n := range out.Items {
		if !n.IsRead {
			out.UnreadCount++
		}
	}
	return out
}

// List returns the cached notifications. Pushed events land in the same key.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	items, err := query.Fetch(c.UserContext(), h.cache, userKey(c, "notifications"), middleware.GetClient(c).ListNotifications)
	return respondRead(c, listNotifications(items), err, listNotifications(nil))
}

// MarkRead persists the read flag and drops the cached list.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	_, err = query.Mutate(c.UserContext(), h.cache, query.Mutation[struct{}]{
		Key:         userKey(c, "notifications", "mutation"),
		Invalidates: []query.Key{userKey(c, "notifications")},
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, middleware.GetClient(c).MarkNotificationRead(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Stream relays pushed notifications as server-sent events.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	token := middleware.GetSession(c).Token()
	channel, err := h.channels.Attach(token)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "notifications are unavailable")
	}
	events, cancel := channel.Subscribe()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case n, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(n)
				if err != nil {
					log.Printf("[Notifications] Failed to encode event: %v", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", realtime.EventNotification, payload)
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
