package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/checkout"
	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/session"
	"github.com/example/pianostore/internal/utils"
)

// ErrorHandler renders fiber errors and anything unhandled as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := services.MessageFailed

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{"success": false, "message": message})
}

func respondData(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func respondCreated(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

// respondError maps write-path errors to a status and a visitor-facing
// message. Nothing is swallowed.
func respondError(c *fiber.Ctx, err error) error {
	body := fiber.Map{"success": false, "message": services.UserMessage(err)}
	status := fiber.StatusInternalServerError

	var (
		verr   *utils.ValidationError
		apiErr *services.APIError
		fe     *fiber.Error
	)
	switch {
	case errors.As(err, &fe):
		status = fe.Code
		body["message"] = fe.Message
	case errors.As(err, &verr):
		status = fiber.StatusUnprocessableEntity
		body["error_code"] = "validation"
		body["field"] = verr.Field
	case errors.Is(err, services.ErrUnauthorized):
		status = fiber.StatusUnauthorized
		body["error_code"] = "unauthorized"
		body["redirect"] = session.LoginPath
	case errors.As(err, &apiErr):
		status = apiErr.Status
		if status < fiber.StatusBadRequest {
			status = fiber.StatusUnprocessableEntity
		}
		body["error_code"] = apiErr.ErrorCode
		if len(apiErr.Data) > 0 && string(apiErr.Data) != "null" {
			body["data"] = apiErr.Data
		}
	case errors.Is(err, services.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusBadGateway
		body["error_code"] = "backend_unavailable"
	case errors.Is(err, query.ErrPending),
		errors.Is(err, checkout.ErrSubmitting),
		errors.Is(err, checkout.ErrDiscountPending):
		status = fiber.StatusConflict
		body["error_code"] = "pending"
		body["message"] = err.Error()
	case errors.Is(err, checkout.ErrNoAddress), errors.Is(err, checkout.ErrIncompleteForm):
		status = fiber.StatusUnprocessableEntity
		body["error_code"] = "validation"
		body["field"] = "address"
		body["message"] = err.Error()
	case errors.Is(err, checkout.ErrNoPaymentMethod), errors.Is(err, checkout.ErrUnknownPayMethod):
		status = fiber.StatusUnprocessableEntity
		body["error_code"] = "validation"
		body["field"] = "paymentMethod"
		body["message"] = err.Error()
	case errors.Is(err, checkout.ErrEmptyCode):
		status = fiber.StatusUnprocessableEntity
		body["error_code"] = "validation"
		body["field"] = "discountCode"
		body["message"] = err.Error()
	case errors.Is(err, checkout.ErrCompleted), errors.Is(err, checkout.ErrClosed), errors.Is(err, checkout.ErrDiscarded):
		status = fiber.StatusConflict
		body["error_code"] = "stale_checkout"
		body["message"] = err.Error()
	default:
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(body)
}

// respondRead serves read endpoints. Failures other than 401 degrade to an
// empty payload so pages still render.
func respondRead(c *fiber.Ctx, data any, err error, empty any) error {
	if err == nil {
		return respondData(c, data)
	}
	if errors.Is(err, services.ErrUnauthorized) {
		return respondError(c, err)
	}

	log.Printf("[HTTP] Read %s degraded: %v", c.Path(), err)
	return c.JSON(fiber.Map{"success": false, "message": services.UserMessage(err), "data": empty})
}

func parseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}

// userKey scopes a cache key to the visitor's session.
func userKey(c *fiber.Ctx, parts ...string) query.Key {
	return append(query.Key{middleware.GetSession(c).Subject()}, parts...)
}
