package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/utils"
)

// ProfileHandler serves the account page and the address book.
type ProfileHandler struct {
	cache *query.Cache
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(cache *query.Cache) *ProfileHandler {
	return &ProfileHandler{cache: cache}
}

// GetProfile returns the current user's profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	profile, err := query.Fetch(c.UserContext(), h.cache, userKey(c, "profile"), middleware.GetClient(c).GetProfile)
	return respondRead(c, profile, err, nil)
}

// UpdateProfile edits name and phone.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	var req models.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Phone != "" {
		if err := utils.ValidatePhone(req.Phone); err != nil {
			return respondError(c, err)
		}
	}

	profile, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[models.Profile]{
		Key:         userKey(c, "profile", "mutation"),
		Invalidates: []query.Key{userKey(c, "profile")},
	}, func(ctx context.Context) (models.Profile, error) {
		return middleware.GetClient(c).UpdateProfile(ctx, req)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, profile)
}

// ChangePassword checks the new password locally before asking the backend.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	var req models.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.CurrentPassword == "" {
		return respondError(c, &utils.ValidationError{Field: "currentPassword", Message: "current password is required"})
	}
	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		return respondError(c, err)
	}

	_, err := query.Mutate(c.UserContext(), h.cache, query.Mutation[struct{}]{
		Key: userKey(c, "password", "mutation"),
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, middleware.GetClient(c).ChangePassword(ctx, req)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "password updated"})
}

// ListAddresses returns the saved addresses.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	addresses, err := query.Fetch(c.UserContext(), h.cache, userKey(c, "addresses"), middleware.GetClient(c).ListAddresses)
	return respondRead(c, addresses, err, []models.Address{})
}

func (h *ProfileHandler) addressMutation(c *fiber.Ctx) query.Mutation[models.Address] {
	return query.Mutation[models.Address]{
		Key:         userKey(c, "addresses", "mutation"),
		Invalidates: []query.Key{userKey(c, "addresses")},
	}
}

// CreateAddress validates the form locally and saves it.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	var form models.AddressForm
	if err := parseBody(c, &form); err != nil {
		return err
	}
	if err := utils.ValidateAddressForm(form); err != nil {
		return respondError(c, err)
	}

	address, err := query.Mutate(c.UserContext(), h.cache, h.addressMutation(c), func(ctx context.Context) (models.Address, error) {
		return middleware.GetClient(c).CreateAddress(ctx, form)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondCreated(c, address)
}

// UpdateAddress edits a saved address.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var form models.AddressForm
	if err := parseBody(c, &form); err != nil {
		return err
	}
	if err := utils.ValidateAddressForm(form); err != nil {
		return respondError(c, err)
	}

	address, err := query.Mutate(c.UserContext(), h.cache, h.addressMutation(c), func(ctx context.Context) (models.Address, error) {
		return middleware.GetClient(c).UpdateAddress(ctx, id, form)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, address)
}

// DeleteAddress removes a saved address.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	_, err = query.Mutate(c.UserContext(), h.cache, h.addressMutation(c), func(ctx context.Context) (models.Address, error) {
		return models.Address{}, middleware.GetClient(c).DeleteAddress(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetDefaultAddress marks one address as default; the backend unsets the rest.
func (h *ProfileHandler) SetDefaultAddress(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	address, err := query.Mutate(c.UserContext(), h.cache, h.addressMutation(c), func(ctx context.Context) (models.Address, error) {
		return middleware.GetClient(c).SetDefaultAddress(ctx, id)
	})
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, address)
}
