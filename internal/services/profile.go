package services

import (
	"context"
	"net/http"

	"github.com/example/pianostore/internal/models"
)

func (c *Client) GetProfile(ctx context.Context) (models.Profile, error) {
	return call[models.Profile](ctx, c, RequestOpts{Path: "users/profile"})
}

func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (models.Profile, error) {
	return call[models.Profile](ctx, c, RequestOpts{Method: http.MethodPut, Path: "users/profile", Body: req})
}

func (c *Client) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodPut, Path: "users/change-password", Body: req}, nil)
}
