package utils

import "github.com/gofiber/fiber/v2"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int
	Limit int
}

// ParsePagination reads ?page= and ?limit=, clamping limit to maxPageSize.
func ParsePagination(c *fiber.Ctx) Pagination {
	p := Pagination{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", defaultPageSize),
	}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultPageSize
	case p.Limit > maxPageSize:
		p.Limit = maxPageSize
	}
	return p
}

// Offset is the number of rows before this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
