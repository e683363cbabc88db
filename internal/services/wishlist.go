package services

import (
	"context"
	"net/http"

	"github.com/example/pianostore/internal/models"
)

type wishlistRequest struct {
	ProductID int64 `json:"productId"`
}

func (c *Client) ListWishlist(ctx context.Context) ([]models.WishlistItem, error) {
	return call[[]models.WishlistItem](ctx, c, RequestOpts{Path: "wishlist"})
}

func (c *Client) AddToWishlist(ctx context.Context, productID int64) (models.WishlistItem, error) {
	return call[models.WishlistItem](ctx, c, RequestOpts{Method: http.MethodPost, Path: "wishlist", Body: wishlistRequest{ProductID: productID}})
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID int64) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodDelete, Path: idPath("wishlist/%d", productID)}, nil)
}
