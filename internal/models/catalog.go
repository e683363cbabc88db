package models

import "github.com/shopspring/decimal"

// Product is a catalog instrument.
type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug,omitempty"`
	Description string           `json:"description,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"salePrice,omitempty"`
	Stock       int              `json:"stock"`
	Images      []string         `json:"images,omitempty"`
	CategoryID  *int64           `json:"categoryId,omitempty"`
	BrandID     *int64           `json:"brandId,omitempty"`
	SupplierID  *int64           `json:"supplierId,omitempty"`
	IsActive    bool             `json:"isActive"`
}

// ProductForm is the admin create/update payload, sent as multipart fields.
type ProductForm struct {
	Name        string
	Description string
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	Stock       int
	CategoryID  *int64
	BrandID     *int64
	SupplierID  *int64
	IsActive    bool
}

// CatalogEntry covers the simple admin-managed lookups: categories, brands, suppliers.
type CatalogEntry struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Page is the paginated list envelope used by list endpoints.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}
