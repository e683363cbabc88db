package handlers

import (
	"context"
	"errors"
	"log"
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

var (
	adminOrders    = query.Key{"admin", "orders"}
	adminDiscounts = query.Key{"admin", "discounts"}
	adminReturns   = query.Key{"admin", "returns"}
)

// AdminHandler serves the back-office order, discount and return screens.
type AdminHandler struct {
	cache  *query.Cache
	ledger PaymentLedger
}

func NewAdminHandler(cache *query.Cache, ledger PaymentLedger) *AdminHandler {
	return &AdminHandler{cache: cache, ledger: ledger}
}

func adminOrderView(order models.Order) orderView {
	view := viewOrder(order)
	view.NextStatuses = order.OrderStatus.NextStatuses()
	return view
}

// ListOrders returns every customer's orders, filtered and paginated.
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	filter := orderFilter(c)
	key := query.Key{"admin", "orders", string(c.Request().URI().QueryString())}

	page, err := query.Fetch(c.UserContext(), h.cache, key, func(ctx context.Context) (models.Page[models.Order], error) {
		return middleware.GetClient(c).AdminListOrders(ctx, filter)
	})
	view := viewOrders(page)
	for i := range view.Items {
		view.Items[i].NextStatuses = view.Items[i].OrderStatus.NextStatuses()
	}
	return respondRead(c, view, err, viewOrders(models.Page[models.Order]{Page: filter.Page, Limit: filter.Limit}))
}

type orderStatusRequest struct {
	OrderStatus   models.OrderStatus   `json:"orderStatus"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

func transitionConflict(c *fiber.Ctx, from, to string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"success":    false,
		"message":    "cannot move from " + from + " to " + to,
		"error_code": "invalid_transition",
	})
}

// UpdateOrderStatus advances an order along the delivery pipeline.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req orderStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if !req.OrderStatus.Valid() {
		return respondError(c, &utils.ValidationError{Field: "orderStatus", Message: "unknown order status"})
	}

	client := middleware.GetClient(c)
	current, err := client.GetOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !current.OrderStatus.CanTransitionTo(req.OrderStatus) {
		return transitionConflict(c, string(current.OrderStatus), string(req.OrderStatus))
	}

	order, err := query.Mutate(c.UserContext(), h.cache, h.orderMutation(id), func(ctx context.Context) (models.Order, error) {
		return client.AdminUpdateOrderStatus(ctx, id, req.OrderStatus)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, adminOrderView(order))
}

// UpdatePaymentStatus records a manual payment correction.
func (h *AdminHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req orderStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if !req.PaymentStatus.Valid() {
		return respondError(c, &utils.ValidationError{Field: "paymentStatus", Message: "unknown payment status"})
	}

	client := middleware.GetClient(c)
	current, err := client.GetOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !current.PaymentStatus.CanTransitionTo(req.PaymentStatus) {
		return transitionConflict(c, string(current.PaymentStatus), string(req.PaymentStatus))
	}

	order, err := query.Mutate(c.UserContext(), h.cache, h.orderMutation(id), func(ctx context.Context) (models.Order, error) {
		return client.AdminUpdatePaymentStatus(ctx, id, req.PaymentStatus)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, adminOrderView(order))
}

func (h *AdminHandler) orderMutation(id int64) query.Mutation[models.Order] {
	return query.Mutation[models.Order]{
		Key:         query.Key{"admin", "orders", "mutation", strconv.FormatInt(id, 10)},
		Invalidates: []query.Key{adminOrders},
	}
}

// ListDiscounts returns every discount code.
func (h *AdminHandler) ListDiscounts(c *fiber.Ctx) error {
	codes, err := query.Fetch(c.UserContext(), h.cache, adminDiscounts, middleware.GetClient(c).ListDiscounts)
	return respondRead(c, codes, err, []models.DiscountCode{})
}

func validateDiscount(code *models.DiscountCode) error {
	code.Code = strings.ToUpper(strings.TrimSpace(code.Code))
	if code.Code == "" {
		return &utils.ValidationError{Field: "code", Message: "code is required"}
	}
	switch code.DiscountType {
	case models.DiscountPercentage:
		if code.Value.GreaterThan(decimal.NewFromInt(100)) {
			return &utils.ValidationError{Field: "value", Message: "percentage cannot exceed 100"}
		}
	case models.DiscountFixed:
	default:
		return &utils.ValidationError{Field: "discountType", Message: "choose percentage or fixed"}
	}
	if !code.Value.IsPositive() {
		return &utils.ValidationError{Field: "value", Message: "value must be positive"}
	}
	if code.StartDate != nil && code.EndDate != nil && code.EndDate.Before(*code.StartDate) {
		return &utils.ValidationError{Field: "endDate", Message: "end date must follow start date"}
	}
	if code.MaxUses != nil && *code.MaxUses < 0 {
		return &utils.ValidationError{Field: "maxUses", Message: "max uses cannot be negative"}
	}
	return nil
}

func (h *AdminHandler) discountMutation() query.Mutation[models.DiscountCode] {
	return query.Mutation[models.DiscountCode]{
		Key:         query.Key{"admin", "discounts", "mutation"},
		Invalidates: []query.Key{adminDiscounts},
	}
}

// CreateDiscount adds a discount code.
func (h *AdminHandler) CreateDiscount(c *fiber.Ctx) error {
	var code models.DiscountCode
	if err := parseBody(c, &code); err != nil {
		return err
	}
	if err := validateDiscount(&code); err != nil {
		return respondError(c, err)
	}

	created, err := query.Mutate(c.UserContext(), h.cache, h.discountMutation(), func(ctx context.Context) (models.DiscountCode, error) {
		return middleware.GetClient(c).CreateDiscount(ctx, code)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, created)
}

// UpdateDiscount edits a discount code.
func (h *AdminHandler) UpdateDiscount(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var code models.DiscountCode
	if err := parseBody(c, &code); err != nil {
		return err
	}
	if err := validateDiscount(&code); err != nil {
		return respondError(c, err)
	}

	updated, err := query.Mutate(c.UserContext(), h.cache, h.discountMutation(), func(ctx context.Context) (models.DiscountCode, error) {
		return middleware.GetClient(c).UpdateDiscount(ctx, id, code)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, updated)
}

// DeleteDiscount removes a discount code.
func (h *AdminHandler) DeleteDiscount(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	_, err = query.Mutate(c.UserContext(), h.cache, h.discountMutation(), func(ctx context.Context) (models.DiscountCode, error) {
		return models.DiscountCode{}, middleware.GetClient(c).DeleteDiscount(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListReturns returns return requests, optionally by status.
func (h *AdminHandler) ListReturns(c *fiber.Ctx) error {
	status := models.ReturnStatus(strings.ToUpper(c.Query("status")))
	if status != "" && !status.Valid() {
		return respondError(c, &utils.ValidationError{Field: "status", Message: "unknown return status"})
	}

	returns, err := query.Fetch(c.UserContext(), h.cache, query.Key{"admin", "returns", string(status)}, func(ctx context.Context) ([]models.ProductReturn, error) {
		return middleware.GetClient(c).AdminListReturns(ctx, status)
	})
	return respondRead(c, returns, err, []models.ProductReturn{})
}

type returnStatusRequest struct {
	Status    models.ReturnStatus `json:"status"`
	AdminNote string              `json:"adminNote"`
}

// UpdateReturnStatus approves, rejects or completes a return.
func (h *AdminHandler) UpdateReturnStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req returnStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Status = models.ReturnStatus(strings.ToUpper(string(req.Status)))
	if !req.Status.Valid() || req.Status == models.ReturnPending {
		return respondError(c, &utils.ValidationError{Field: "status", Message: "choose approved, rejected or completed"})
	}

	updated, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.ProductReturn]{
		Key:         query.Key{"admin", "returns", "mutation", strconv.FormatInt(id, 10)},
		Invalidates: []query.Key{adminReturns, adminOrders},
	}, func(ctx context.Context) (models.ProductReturn, error) {
		return middleware.GetClient(c).AdminUpdateReturnStatus(ctx, id, req.Status, strings.TrimSpace(req.AdminNote))
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, updated)
}

type dashboard struct {
	TotalOrders    int              `json:"totalOrders"`
	PendingOrders  int              `json:"pendingOrders"`
	PendingReturns int              `json:"pendingReturns"`
	PaymentReturns map[string]int64 `json:"paymentReturns"`
	Degraded       []string         `json:"degraded,omitempty"`
}

// Dashboard summarises what needs an operator's attention. Each panel
// degrades on its own.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	client := middleware.GetClient(c)
	out := dashboard{PaymentReturns: map[string]int64{}}

	degrade := func(panel string, err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, services.ErrUnauthorized) {
			return true
		}
		log.Printf("[Admin] Dashboard %s degraded: %v", panel, err)
		out.Degraded = append(out.Degraded, panel)
		return false
	}

	all, err := client.AdminListOrders(ctx, services.OrderFilter{Page: 1, Limit: 1})
	if degrade("orders", err) {
		return respondError(c, err)
	}
	out.TotalOrders = all.TotalItems

	pending, err := client.AdminListOrders(ctx, services.OrderFilter{Page: 1, Limit: 1, OrderStatus: models.OrderPending})
	if degrade("pendingOrders", err) {
		return respondError(c, err)
	}
	out.PendingOrders = pending.TotalItems

	returns, err := client.AdminListReturns(ctx, models.ReturnPending)
	if degrade("returns", err) {
		return respondError(c, err)
	}
	out.PendingReturns = len(returns)

	if h.ledger != nil {
		counts, err := h.ledger.OutcomeCounts(ctx)
		if err != nil {
			log.Printf("[Admin] Dashboard payments degraded: %v", err)
			out.Degraded = append(out.Degraded, "payments")
		} else {
			out.PaymentReturns = counts
		}
	}

	return respondData(c, out)
}
