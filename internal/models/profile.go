package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Elevated reports whether the role may enter the admin back-office.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Profile is the authenticated user's account.
type Profile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phone,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdateProfileRequest struct {
	FullName string `json:"fullName,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResult is returned on login and register.
type AuthResult struct {
	AccessToken string  `json:"accessToken"`
	Role        Role    `json:"role"`
	User        Profile `json:"user"`
}

type WishlistItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"productId"`
	Product   Product `json:"product"`
}
