package services

import (
	"context"
	"net/http"

	"github.com/example/pianostore/internal/models"
)

func (c *Client) ListAddresses(ctx context.Context) ([]models.Address, error) {
	return call[[]models.Address](ctx, c, RequestOpts{Path: "addresses"})
}

func (c *Client) CreateAddress(ctx context.Context, form models.AddressForm) (models.Address, error) {
	return call[models.Address](ctx, c, RequestOpts{Method: http.MethodPost, Path: "addresses", Body: form})
}

func (c *Client) UpdateAddress(ctx context.Context, id int64, form models.AddressForm) (models.Address, error) {
	return call[models.Address](ctx, c, RequestOpts{Method: http.MethodPut, Path: idPath("addresses/%d", id), Body: form})
}

func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodDelete, Path: idPath("addresses/%d", id)}, nil)
}

// SetDefaultAddress marks the address as default; the backend unsets any other.
func (c *Client) SetDefaultAddress(ctx context.Context, id int64) (models.Address, error) {
	return call[models.Address](ctx, c, RequestOpts{Method: http.MethodPatch, Path: idPath("addresses/%d/default", id)})
}
