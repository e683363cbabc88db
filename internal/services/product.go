package services

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/pianostore/internal/models"
)

// ProductFilter narrows product lists.
type ProductFilter struct {
	Page       int
	Limit      int
	Search     string
	CategoryID int64
	BrandID    int64
	Sort       string
}

func (f ProductFilter) values() url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", itoa(f.Limit))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.CategoryID > 0 {
		q.Set("categoryId", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.BrandID > 0 {
		q.Set("brandId", strconv.FormatInt(f.BrandID, 10))
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	return q
}

func (c *Client) ListProducts(ctx context.Context, filter ProductFilter) (models.Page[models.Product], error) {
	return call[models.Page[models.Product]](ctx, c, RequestOpts{Path: "products", Query: filter.values()})
}

func (c *Client) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	return call[models.Product](ctx, c, RequestOpts{Path: idPath("products/%d", id)})
}

// CreateProduct uploads the product form with its images.
func (c *Client) CreateProduct(ctx context.Context, form models.ProductForm, images []FilePart) (models.Product, error) {
	var out models.Product
	err := c.Upload(ctx, http.MethodPost, "products", productFields(form), images, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, form models.ProductForm, images []FilePart) (models.Product, error) {
	var out models.Product
	err := c.Upload(ctx, http.MethodPut, idPath("products/%d", id), productFields(form), images, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodDelete, Path: idPath("products/%d", id)}, nil)
}

func productFields(form models.ProductForm) url.Values {
	fields := url.Values{}
	fields.Set("name", form.Name)
	fields.Set("description", form.Description)
	fields.Set("price", form.Price.String())
	fields.Set("stock", itoa(form.Stock))
	fields.Set("isActive", strconv.FormatBool(form.IsActive))
	if form.SalePrice != nil {
		fields.Set("salePrice", form.SalePrice.String())
	}
	for key, id := range map[string]*int64{"categoryId": form.CategoryID, "brandId": form.BrandID, "supplierId": form.SupplierID} {
		if id != nil {
			fields.Set(key, strconv.FormatInt(*id, 10))
		}
	}
	return fields
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
