package services

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/example/pianostore/internal/models"
)

type validateDiscountRequest struct {
	Code       string          `json:"code"`
	OrderTotal decimal.Decimal `json:"orderTotal"`
}

// ValidateDiscount asks the backend whether code applies to subtotal. The
// verdict is authoritative.
func (c *Client) ValidateDiscount(ctx context.Context, code string, subtotal decimal.Decimal) (models.DiscountValidation, error) {
	return call[models.DiscountValidation](ctx, c, RequestOpts{
		Method: http.MethodPost,
		Path:   "discounts/validate",
		Body:   validateDiscountRequest{Code: code, OrderTotal: subtotal},
	})
}

func (c *Client) ListDiscounts(ctx context.Context) ([]models.DiscountCode, error) {
	return call[[]models.DiscountCode](ctx, c, RequestOpts{Path: "discounts"})
}

func (c *Client) CreateDiscount(ctx context.Context, code models.DiscountCode) (models.DiscountCode, error) {
	return call[models.DiscountCode](ctx, c, RequestOpts{Method: http.MethodPost, Path: "discounts", Body: code})
}

func (c *Client) UpdateDiscount(ctx context.Context, id int64, code models.DiscountCode) (models.DiscountCode, error) {
	return call[models.DiscountCode](ctx, c, RequestOpts{Method: http.MethodPut, Path: idPath("discounts/%d", id), Body: code})
}

func (c *Client) DeleteDiscount(ctx context.Context, id int64) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodDelete, Path: idPath("discounts/%d", id)}, nil)
}
