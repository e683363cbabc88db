package services

import (
	"context"
	"net/http"

	"github.com/example/pianostore/internal/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (models.AuthResult, error) {
	return call[models.AuthResult](ctx, c, RequestOpts{Method: http.MethodPost, Path: "auth/login", Body: req})
}

// AdminLogin is the back-office login; the backend rejects customer accounts.
func (c *Client) AdminLogin(ctx context.Context, req LoginRequest) (models.AuthResult, error) {
	return call[models.AuthResult](ctx, c, RequestOpts{Method: http.MethodPost, Path: "auth/admin/login", Body: req})
}

// Register creates a customer account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (models.AuthResult, error) {
	return call[models.AuthResult](ctx, c, RequestOpts{Method: http.MethodPost, Path: "auth/register", Body: req})
}

// Logout revokes the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, RequestOpts{Method: http.MethodPost, Path: "auth/logout"}, nil)
}
