package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/checkout"
	"github.com/example/pianostore/internal/metrics"
	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/services"
)

// CheckoutHandler exposes the checkout orchestrator of the visitor.
type CheckoutHandler struct {
	cache    *query.Cache
	registry *checkout.Registry
	telegram *services.TelegramService
	metrics  *metrics.AppMetrics
	secure   bool
}

func NewCheckoutHandler(cache *query.Cache, registry *checkout.Registry, telegram *services.TelegramService, m *metrics.AppMetrics, secureCookies bool) *CheckoutHandler {
	return &CheckoutHandler{cache: cache, registry: registry, telegram: telegram, metrics: m, secure: secureCookies}
}

func (h *CheckoutHandler) orchestrator(c *fiber.Ctx) *checkout.Orchestrator {
	_, orch := h.acquire(c)
	return orch
}

func (h *CheckoutHandler) acquire(c *fiber.Ctx) (string, *checkout.Orchestrator) {
	store := middleware.GetSession(c)
	backend := checkout.WithCachedCart(middleware.GetClient(c), h.cache, userKey(c, "cart"))

	id, orch := h.registry.Acquire(c.Cookies(checkout.CookieName), store.Subject(), backend)
	if id != c.Cookies(checkout.CookieName) {
		c.Cookie(&fiber.Cookie{
			Name:     checkout.CookieName,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().Add(24 * time.Hour),
			Secure:   h.secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	return id, orch
}

func (h *CheckoutHandler) state(c *fiber.Ctx, orch *checkout.Orchestrator) error {
	totals, err := orch.Totals(c.UserContext())
	if err != nil {
		log.Printf("[Checkout] Totals unavailable: %v", err)
		return c.JSON(fiber.Map{
			"success": false,
			"message": services.UserMessage(err),
			"data":    fiber.Map{"checkout": orch.Snapshot(), "totals": nil},
		})
	}
	return respondData(c, fiber.Map{"checkout": orch.Snapshot(), "totals": totals})
}

// State returns the checkout snapshot and totals recomputed from the cart.
func (h *CheckoutHandler) State(c *fiber.Ctx) error {
	return h.state(c, h.orchestrator(c))
}

type addressChoice struct {
	AddressID     int64               `json:"addressId"`
	UseNewAddress bool                `json:"useNewAddress"`
	AddressForm   *models.AddressForm `json:"addressForm"`
}

// ChooseAddress selects a saved address or switches to a new one.
func (h *CheckoutHandler) ChooseAddress(c *fiber.Ctx) error {
	var req addressChoice
	if err := parseBody(c, &req); err != nil {
		return err
	}

	orch := h.orchestrator(c)
	switch {
	case req.UseNewAddress:
		form := models.AddressForm{}
		if req.AddressForm != nil {
			form = *req.AddressForm
		}
		orch.UseNewAddress(form)
	case req.AddressID > 0:
		orch.SelectAddress(req.AddressID)
	default:
		return respondError(c, checkout.ErrNoAddress)
	}
	return h.state(c, orch)
}

type paymentChoice struct {
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
}

func (h *CheckoutHandler) ChoosePaymentMethod(c *fiber.Ctx) error {
	var req paymentChoice
	if err := parseBody(c, &req); err != nil {
		return err
	}

	orch := h.orchestrator(c)
	if err := orch.SetPaymentMethod(req.PaymentMethod); err != nil {
		return respondError(c, err)
	}
	return h.state(c, orch)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *CheckoutHandler) SetNote(c *fiber.Ctx) error {
	var req noteRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	orch := h.orchestrator(c)
	orch.SetNote(req.Note)
	return h.state(c, orch)
}

type discountRequest struct {
	Code string `json:"code"`
}

// ApplyDiscount validates a code against the current subtotal. A rejected
// code is reported in the snapshot's discountError.
func (h *CheckoutHandler) ApplyDiscount(c *fiber.Ctx) error {
	var req discountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	orch := h.orchestrator(c)
	_, err := orch.ApplyDiscount(c.UserContext(), req.Code)
	switch {
	case err == nil:
		h.metrics.DiscountValidated(c.UserContext(), true)
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, checkout.ErrDiscountPending),
		errors.Is(err, checkout.ErrClosed),
		errors.Is(err, checkout.ErrDiscarded):
		return respondError(c, err)
	default:
		h.metrics.DiscountValidated(c.UserContext(), false)
	}
	return h.state(c, orch)
}

func (h *CheckoutHandler) RemoveDiscount(c *fiber.Ctx) error {
	orch := h.orchestrator(c)
	orch.RemoveDiscount()
	return h.state(c, orch)
}

// Submit places the order. Gateway payments come back with an external
// redirect the browser must follow with a full page load.
func (h *CheckoutHandler) Submit(c *fiber.Ctx) error {
	id, orch := h.acquire(c)

	result, err := orch.Submit(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	subject := middleware.GetSession(c).Subject()
	h.cache.Invalidate(query.Key{subject, "cart"})
	h.cache.Invalidate(query.Key{subject, "orders"})
	h.cache.Invalidate(query.Key{subject, "addresses"})
	h.registry.Release(id)
	c.ClearCookie(checkout.CookieName)

	h.metrics.OrderSubmitted(c.UserContext(), string(result.Order.PaymentMethod), result.Order.OrderTotal)
	if h.telegram.Enabled() {
		order := result.Order
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := h.telegram.NotifyNewOrder(ctx, order); err != nil {
				log.Printf("[Checkout] Telegram notification failed: %v", err)
			}
		}()
	}

	return respondData(c, result)
}
