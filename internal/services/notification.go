package services

import (
	"context"
	"net/http"

	"github.com/example/pianostore/internal/models"
)

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	return call[[]models.Notification](ctx, c, RequestOpts{Path: "notifications"})
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodPatch, Path: idPath("notifications/%d/read", id)}, nil)
}
