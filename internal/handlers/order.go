package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/payment"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/utils"
)

// OrderHandler serves the customer's order history, cancellations and returns.
type OrderHandler struct {
	cache *query.Cache
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(cache *query.Cache) *OrderHandler {
	return &OrderHandler{cache: cache}
}

type orderView struct {
	models.Order
	Cancellable  bool                 `json:"cancellable"`
	NeedsPayment bool                 `json:"needsPayment"`
	NextStatuses []models.OrderStatus `json:"nextStatuses,omitempty"`
}

func viewOrder(order models.Order) orderView {
	return orderView{
		Order:        order,
		Cancellable:  order.Cancellable(),
		NeedsPayment: payment.NeedsPayment(order),
	}
}

func viewOrders(page models.Page[models.Order]) models.Page[orderView] {
	out := models.Page[orderView]{
		Items:      make([]orderView, 0, len(page.Items)),
		Page:       page.Page,
		Limit:      page.Limit,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	}
	if out.TotalPages == 0 {
		out.TotalPages = utils.TotalPages(page.TotalItems, page.Limit)
	}
	for _, order := range page.Items {
		out.Items = append(out.Items, viewOrder(order))
	}
	return out
}

func orderFilter(c *fiber.Ctx) services.OrderFilter {
	pg := utils.ParsePagination(c)
	return services.OrderFilter{
		Page:          pg.Page,
		Limit:         pg.Limit,
		OrderStatus:   models.OrderStatus(c.Query("orderStatus")),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
		Search:        strings.TrimSpace(c.Query("search")),
	}
}

// ListOrders returns a page of the customer's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	filter := orderFilter(c)
	key := userKey(c, "orders", "list", string(c.Request().URI().QueryString()))

	page, err := query.Fetch(c.UserContext(), h.cache, key, func(ctx context.Context) (models.Page[models.Order], error) {
		return middleware.GetClient(c).ListOrders(ctx, filter)
	})
	return respondRead(c, viewOrders(page), err, viewOrders(models.Page[models.Order]{Page: filter.Page, Limit: filter.Limit}))
}

// GetOrder returns one order with what the customer may still do with it.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := query.Fetch(c.UserContext(), h.cache, userKey(c, "orders", "id", strconv.FormatInt(id, 10)), func(ctx context.Context) (models.Order, error) {
		return middleware.GetClient(c).GetOrder(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, viewOrder(order))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels a pending or processing order.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	order, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.Order]{
		Key:         userKey(c, "orders", "mutation", strconv.FormatInt(id, 10)),
		Invalidates: []query.Key{userKey(c, "orders")},
	}, func(ctx context.Context) (models.Order, error) {
		return middleware.GetClient(c).CancelOrder(ctx, id, strings.TrimSpace(req.Reason))
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, viewOrder(order))
}

// ListReturns returns the customer's return requests.
func (h *OrderHandler) ListReturns(c *fiber.Ctx) error {
	returns, err := query.Fetch(c.UserContext(), h.cache, userKey(c, "returns"), middleware.GetClient(c).ListMyReturns)
	return respondRead(c, returns, err, []models.ProductReturn{})
}

// CreateReturn checks the request against the delivered order line before
// sending it.
func (h *OrderHandler) CreateReturn(c *fiber.Ctx) error {
	var req models.CreateReturnRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Reason = strings.TrimSpace(req.Reason)

	client := middleware.GetClient(c)
	order, err := client.GetOrder(c.UserContext(), req.OrderID)
	if err != nil {
		return respondError(c, err)
	}
	if order.OrderStatus != models.OrderDelivered {
		return respondError(c, &utils.ValidationError{Field: "orderId", Message: "only delivered orders can be returned"})
	}
	item, ok := order.Item(req.OrderItemID)
	if !ok {
		return respondError(c, &utils.ValidationError{Field: "orderItemId", Message: "item not found in this order"})
	}
	if err := utils.ValidateReturnRequest(req, item); err != nil {
		return respondError(c, err)
	}

	created, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.ProductReturn]{
		Key:         userKey(c, "returns", "mutation"),
		Invalidates: []query.Key{userKey(c, "returns"), userKey(c, "orders")},
	}, func(ctx context.Context) (models.ProductReturn, error) {
		return client.CreateReturn(ctx, req)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, created)
}

// CancelReturn withdraws a pending return request.
func (h *OrderHandler) CancelReturn(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	returns, _ := query.Peek[[]models.ProductReturn](h.cache, userKey(c, "returns"))
	for _, r := range returns {
		if r.ID == id && !r.Cancellable() {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success":    false,
				"message":    "only pending returns can be cancelled",
				"error_code": "not_cancellable",
			})
		}
	}

	updated, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.ProductReturn]{
		Key:         userKey(c, "returns", "mutation"),
		Invalidates: []query.Key{userKey(c, "returns")},
	}, func(ctx context.Context) (models.ProductReturn, error) {
		return middleware.GetClient(c).CancelReturn(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, updated)
}
