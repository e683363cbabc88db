package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/example/pianostore/internal/models"
)

type returnStatusRequest struct {
	Status    models.ReturnStatus `json:"status"`
	AdminNote string              `json:"adminNote,omitempty"`
}

func (c *Client) CreateReturn(ctx context.Context, req models.CreateReturnRequest) (models.ProductReturn, error) {
	return call[models.ProductReturn](ctx, c, RequestOpts{Method: http.MethodPost, Path: "returns", Body: req})
}

func (c *Client) ListMyReturns(ctx context.Context) ([]models.ProductReturn, error) {
	return call[[]models.ProductReturn](ctx, c, RequestOpts{Path: "returns/me"})
}

func (c *Client) CancelReturn(ctx context.Context, id int64) (models.ProductReturn, error) {
	return call[models.ProductReturn](ctx, c, RequestOpts{Method: http.MethodPatch, Path: idPath("returns/%d/cancel", id)})
}

func (c *Client) AdminListReturns(ctx context.Context, status models.ReturnStatus) ([]models.ProductReturn, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	return call[[]models.ProductReturn](ctx, c, RequestOpts{Path: "admin/returns", Query: q})
}

func (c *Client) AdminUpdateReturnStatus(ctx context.Context, id int64, status models.ReturnStatus, note string) (models.ProductReturn, error) {
	return call[models.ProductReturn](ctx, c, RequestOpts{
		Method: http.MethodPatch,
		Path:   idPath("admin/returns/%d/status", id),
		Body:   returnStatusRequest{Status: status, AdminNote: note},
	})
}
