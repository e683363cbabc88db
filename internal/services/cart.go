package services

import (
	"context"
	"net/http"

	"github.com/example/pianostore/internal/models"
)

type AddCartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (c *Client) GetCart(ctx context.Context) (models.Cart, error) {
	return call[models.Cart](ctx, c, RequestOpts{Path: "cart"})
}

func (c *Client) AddCartItem(ctx context.Context, req AddCartItemRequest) (models.Cart, error) {
	return call[models.Cart](ctx, c, RequestOpts{Method: http.MethodPost, Path: "cart/items", Body: req})
}

func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, quantity int) (models.Cart, error) {
	return call[models.Cart](ctx, c, RequestOpts{
		Method: http.MethodPut,
		Path:   idPath("cart/items/%d", itemID),
		Body:   updateQuantityRequest{Quantity: quantity},
	})
}

func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) (models.Cart, error) {
	return call[models.Cart](ctx, c, RequestOpts{Method: http.MethodDelete, Path: idPath("cart/items/%d", itemID)})
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodDelete, Path: "cart"}, nil)
}
