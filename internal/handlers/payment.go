package handlers

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/pianostore/internal/checkout"
	"github.com/example/pianostore/internal/metrics"
	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/payment"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/utils"
)

// PaymentLedger is the read side of the reconciliation store.
type PaymentLedger interface {
	Returns(ctx context.Context, orderRef string, limit, offset int) ([]models.PaymentReturnRecord, int64, error)
	Snapshot(ctx context.Context, orderRef string) (models.OrderPaymentSnapshot, error)
	OutcomeCounts(ctx context.Context) (map[string]int64, error)
}

// PaymentHandler resolves gateway returns and pay-again requests.
type PaymentHandler struct {
	cache    *query.Cache
	payments *payment.Handler
	ledger   PaymentLedger
	metrics  *metrics.AppMetrics
	view     string
}

func NewPaymentHandler(cache *query.Cache, payments *payment.Handler, ledger PaymentLedger, m *metrics.AppMetrics, returnView string) *PaymentHandler {
	return &PaymentHandler{cache: cache, payments: payments, ledger: ledger, metrics: m, view: returnView}
}

// returnParams keeps every well-formed pair even when one is not; the backend
// decides what a partial bag means.
func returnParams(c *fiber.Ctx) url.Values {
	params, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		log.Printf("[Payment] Return query partly unparseable: %v", err)
	}
	return params
}

func (h *PaymentHandler) verify(c *fiber.Ctx) payment.Outcome {
	outcome := h.payments.VerifyReturn(c.UserContext(), middleware.GetClient(c), returnParams(c))
	h.metrics.PaymentReturn(c.UserContext(), string(outcome.State))

	if outcome.State == payment.StateSuccess || outcome.State == payment.StateFailure {
		h.cache.Invalidate(userKey(c, "orders"))
	}
	return outcome
}

// VerifyReturn renders the outcome of a gateway return as JSON.
func (h *PaymentHandler) VerifyReturn(c *fiber.Ctx) error {
	outcome := h.verify(c)
	return c.JSON(fiber.Map{"success": outcome.State == payment.StateSuccess, "data": outcome})
}

// ReturnRedirect is the gateway's browser return target. It verifies, then
// sends the browser to the result view with the outcome in the query.
func (h *PaymentHandler) ReturnRedirect(c *fiber.Ctx) error {
	outcome := h.verify(c)

	q := url.Values{}
	q.Set("state", string(outcome.State))
	q.Set("message", outcome.Message)
	if outcome.OrderID > 0 {
		q.Set("orderId", strconv.FormatInt(outcome.OrderID, 10))
	}
	if outcome.OrderRef != "" {
		q.Set("orderRef", outcome.OrderRef)
	}
	return c.Redirect(h.view+"?"+q.Encode(), fiber.StatusSeeOther)
}

// PayAgain issues a fresh gateway URL for an unpaid gateway order.
func (h *PaymentHandler) PayAgain(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	client := middleware.GetClient(c)
	order, err := client.GetOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	paymentURL, err := h.payments.RetryPayment(c.UserContext(), client, order)
	if errors.Is(err, payment.ErrNotPayable) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":    false,
			"message":    "this order does not need payment",
			"error_code": "not_payable",
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return respondData(c, fiber.Map{"redirect": checkout.Redirect{External: true, URL: paymentURL}})
}

var errNoLedger = fiber.NewError(fiber.StatusServiceUnavailable, "payment records are unavailable")

// ListReturns pages through recorded gateway returns for operators.
func (h *PaymentHandler) ListReturns(c *fiber.Ctx) error {
	if h.ledger == nil {
		return errNoLedger
	}
	pg := utils.ParsePagination(c)
	records, total, err := h.ledger.Returns(c.UserContext(), c.Query("orderRef"), pg.Limit, pg.Offset())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    records,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
			"total_pages":    utils.TotalPages(int(total), pg.Limit),
		},
	})
}

// Snapshot returns the reconciled payment state of an order reference.
func (h *PaymentHandler) Snapshot(c *fiber.Ctx) error {
	if h.ledger == nil {
		return errNoLedger
	}
	snapshot, err := h.ledger.Snapshot(c.UserContext(), c.Params("ref"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no payment recorded for this order")
	}
	if err != nil {
		return err
	}
	return respondData(c, snapshot)
}

// Summary counts recorded returns per outcome.
func (h *PaymentHandler) Summary(c *fiber.Ctx) error {
	if h.ledger == nil {
		return errNoLedger
	}
	counts, err := h.ledger.OutcomeCounts(c.UserContext())
	if err != nil {
		return err
	}
	return respondData(c, counts)
}
