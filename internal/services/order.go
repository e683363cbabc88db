package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/example/pianostore/internal/models"
)

// OrderFilter narrows order lists.
type OrderFilter struct {
	Page          int
	Limit         int
	OrderStatus   models.OrderStatus
	PaymentStatus models.PaymentStatus
	Search        string
}

func (f OrderFilter) values() url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", itoa(f.Limit))
	}
	if f.OrderStatus != "" {
		q.Set("orderStatus", string(f.OrderStatus))
	}
	if f.PaymentStatus != "" {
		q.Set("paymentStatus", string(f.PaymentStatus))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

type orderStatusRequest struct {
	OrderStatus models.OrderStatus `json:"orderStatus,omitempty"`
}

type paymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CreateOrder submits a checkout. Gateway payments come back with a PaymentURL.
func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreatedOrder, error) {
	return call[models.CreatedOrder](ctx, c, RequestOpts{Method: http.MethodPost, Path: "orders", Body: req})
}

func (c *Client) ListOrders(ctx context.Context, filter OrderFilter) (models.Page[models.Order], error) {
	return call[models.Page[models.Order]](ctx, c, RequestOpts{Path: "orders", Query: filter.values()})
}

func (c *Client) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	return call[models.Order](ctx, c, RequestOpts{Path: idPath("orders/%d", id)})
}

func (c *Client) CancelOrder(ctx context.Context, id int64, reason string) (models.Order, error) {
	return call[models.Order](ctx, c, RequestOpts{
		Method: http.MethodPatch,
		Path:   idPath("orders/%d/cancel", id),
		Body:   cancelOrderRequest{Reason: reason},
	})
}

func (c *Client) AdminListOrders(ctx context.Context, filter OrderFilter) (models.Page[models.Order], error) {
	return call[models.Page[models.Order]](ctx, c, RequestOpts{Path: "admin/orders", Query: filter.values()})
}

func (c *Client) AdminUpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (models.Order, error) {
	return call[models.Order](ctx, c, RequestOpts{
		Method: http.MethodPatch,
		Path:   idPath("admin/orders/%d/status", id),
		Body:   orderStatusRequest{OrderStatus: status},
	})
}

func (c *Client) AdminUpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (models.Order, error) {
	return call[models.Order](ctx, c, RequestOpts{
		Method: http.MethodPatch,
		Path:   idPath("admin/orders/%d/payment-status", id),
		Body:   paymentStatusRequest{PaymentStatus: status},
	})
}
