package handlers

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/utils"
)

const maxImageSize = 5 << 20

var publicProducts = query.Key{"public", "products"}

// CatalogHandler serves products and the category, brand and supplier lookups.
type CatalogHandler struct {
	cache *query.Cache
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(cache *query.Cache) *CatalogHandler {
	return &CatalogHandler{cache: cache}
}

// ListProducts returns a filtered, paginated product page.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	filter := services.ProductFilter{
		Page:       pg.Page,
		Limit:      pg.Limit,
		Search:     strings.TrimSpace(c.Query("search")),
		CategoryID: int64(c.QueryInt("categoryId")),
		BrandID:    int64(c.QueryInt("brandId")),
		Sort:       c.Query("sort"),
	}

	key := append(query.Key{}, publicProducts...)
	key = append(key, string(c.Request().URI().QueryString()))
	page, err := query.Fetch(c.UserContext(), h.cache, key, func(ctx context.Context) (models.Page[models.Product], error) {
		return middleware.GetClient(c).ListProducts(ctx, filter)
	})
	return respondRead(c, page, err, models.Page[models.Product]{Items: []models.Product{}, Page: pg.Page, Limit: pg.Limit})
}

// GetProduct returns a single product.
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	key := append(append(query.Key{}, publicProducts...), "id", c.Params("id"))
	product, err := query.Fetch(c.UserContext(), h.cache, key, func(ctx context.Context) (models.Product, error) {
		return middleware.GetClient(c).GetProduct(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, product)
}

// CreateProduct forwards a multipart product form with its images.
func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	form, images, err := parseProductForm(c)
	if err != nil {
		return respondError(c, err)
	}

	product, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.Product]{
		Key:         query.Key{"admin", "products", "create"},
		Invalidates: []query.Key{publicProducts},
	}, func(ctx context.Context) (models.Product, error) {
		return middleware.GetClient(c).CreateProduct(ctx, form, images)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, product)
}

// UpdateProduct replaces product fields; new images are appended.
func (h *CatalogHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	form, images, err := parseProductForm(c)
	if err != nil {
		return respondError(c, err)
	}

	product, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.Product]{
		Key:         query.Key{"admin", "products", c.Params("id")},
		Invalidates: []query.Key{publicProducts},
	}, func(ctx context.Context) (models.Product, error) {
		return middleware.GetClient(c).UpdateProduct(ctx, id, form, images)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, product)
}

// DeleteProduct removes a product.
func (h *CatalogHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	_, err = query.Mutate(c.UserContext(), h.cache, query.Mutation[struct{}]{
		Key:         query.Key{"admin", "products", c.Params("id")},
		Invalidates: []query.Key{publicProducts},
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, middleware.GetClient(c).DeleteProduct(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseProductForm(c *fiber.Ctx) (models.ProductForm, []services.FilePart, error) {
	var form models.ProductForm

	form.Name = strings.TrimSpace(c.FormValue("name"))
	if form.Name == "" {
		return form, nil, respondValidation("name", "name is required")
	}
	form.Description = c.FormValue("description")

	price, err := decimal.NewFromString(c.FormValue("price"))
	if err != nil || price.IsNegative() {
		return form, nil, respondValidation("price", "price must be a non-negative number")
	}
	form.Price = price

	if raw := c.FormValue("salePrice"); raw != "" {
		sale, err := decimal.NewFromString(raw)
		if err != nil || sale.IsNegative() || sale.GreaterThan(price) {
			return form, nil, respondValidation("salePrice", "sale price must be between 0 and price")
		}
		form.SalePrice = &sale
	}

	if raw := c.FormValue("stock"); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil || stock < 0 {
			return form, nil, respondValidation("stock", "stock must be a non-negative integer")
		}
		form.Stock = stock
	}

	form.CategoryID = optionalID(c.FormValue("categoryId"))
	form.BrandID = optionalID(c.FormValue("brandId"))
	form.SupplierID = optionalID(c.FormValue("supplierId"))
	form.IsActive = c.FormValue("isActive", "true") == "true"

	var images []services.FilePart
	if multipart, err := c.MultipartForm(); err == nil {
		for _, header := range multipart.File["images"] {
			if header.Size > maxImageSize {
				return form, nil, respondValidation("images", header.Filename+" exceeds 5MB")
			}
			f, err := header.Open()
			if err != nil {
				return form, nil, fiber.NewError(fiber.StatusBadRequest, "unreadable image")
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return form, nil, fiber.NewError(fiber.StatusBadRequest, "unreadable image")
			}
			images = append(images, services.FilePart{Field: "images", Filename: header.Filename, Content: content})
		}
	}

	return form, images, nil
}

func optionalID(raw string) *int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func respondValidation(field, message string) error {
	return &utils.ValidationError{Field: field, Message: message}
}

func catalogKind(c *fiber.Ctx) (services.CatalogKind, error) {
	kind := services.CatalogKind(c.Params("kind"))
	if !kind.Valid() {
		return "", fiber.NewError(fiber.StatusNotFound, "unknown collection")
	}
	return kind, nil
}

// ListCatalog returns categories, brands or suppliers.
func (h *CatalogHandler) ListCatalog(c *fiber.Ctx) error {
	kind, err := catalogKind(c)
	if err != nil {
		return err
	}

	entries, err := query.Fetch(c.UserContext(), h.cache, query.Key{"public", string(kind)}, func(ctx context.Context) ([]models.CatalogEntry, error) {
		return middleware.GetClient(c).ListCatalog(ctx, kind)
	})
	return respondRead(c, entries, err, []models.CatalogEntry{})
}

// CreateCatalogEntry adds an entry to the collection.
func (h *CatalogHandler) CreateCatalogEntry(c *fiber.Ctx) error {
	kind, err := catalogKind(c)
	if err != nil {
		return err
	}
	var payload models.CatalogEntry
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Name) == "" {
		return respondError(c, &utils.ValidationError{Field: "name", Message: "name is required"})
	}

	entry, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.CatalogEntry]{
		Key:         query.Key{"admin", string(kind), "create"},
		Invalidates: []query.Key{{"public", string(kind)}},
	}, func(ctx context.Context) (models.CatalogEntry, error) {
		return middleware.GetClient(c).CreateCatalogEntry(ctx, kind, payload)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, entry)
}

// UpdateCatalogEntry edits an entry.
func (h *CatalogHandler) UpdateCatalogEntry(c *fiber.Ctx) error {
	kind, err := catalogKind(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var payload models.CatalogEntry
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	payload.ID = id

	entry, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.CatalogEntry]{
		Key:         query.Key{"admin", string(kind), c.Params("id")},
		Invalidates: []query.Key{{"public", string(kind)}},
	}, func(ctx context.Context) (models.CatalogEntry, error) {
		return middleware.GetClient(c).UpdateCatalogEntry(ctx, kind, id, payload)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, entry)
}

// DeleteCatalogEntry removes an entry.
func (h *CatalogHandler) DeleteCatalogEntry(c *fiber.Ctx) error {
	kind, err := catalogKind(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	_, err = query.Mutate(c.UserContext(), h.cache, query.Mutation[struct{}]{
		Key:         query.Key{"admin", string(kind), c.Params("id")},
		Invalidates: []query.Key{{"public", string(kind)}},
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, middleware.GetClient(c).DeleteCatalogEntry(ctx, kind, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
