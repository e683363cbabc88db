package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/example/pianostore/internal/models"
)

// CatalogKind names an admin-managed lookup collection.
type CatalogKind string

const (
	Categories CatalogKind = "categories"
	Brands     CatalogKind = "brands"
	Suppliers  CatalogKind = "suppliers"
)

// Valid reports whether k is a known collection.
func (k CatalogKind) Valid() bool {
	return k == Categories || k == Brands || k == Suppliers
}

func (c *Client) ListCatalog(ctx context.Context, kind CatalogKind) ([]models.CatalogEntry, error) {
	return call[[]models.CatalogEntry](ctx, c, RequestOpts{Path: string(kind)})
}

func (c *Client) CreateCatalogEntry(ctx context.Context, kind CatalogKind, entry models.CatalogEntry) (models.CatalogEntry, error) {
	return call[models.CatalogEntry](ctx, c, RequestOpts{Method: http.MethodPost, Path: string(kind), Body: entry})
}

func (c *Client) UpdateCatalogEntry(ctx context.Context, kind CatalogKind, id int64, entry models.CatalogEntry) (models.CatalogEntry, error) {
	return call[models.CatalogEntry](ctx, c, RequestOpts{Method: http.MethodPut, Path: fmt.Sprintf("%s/%d", kind, id), Body: entry})
}

func (c *Client) DeleteCatalogEntry(ctx context.Context, kind CatalogKind, id int64) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodDelete, Path: fmt.Sprintf("%s/%d", kind, id)}, nil)
}
