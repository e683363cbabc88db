package models

import "strings"

// Address is a saved shipping address. The backend keeps at most one default per user.
type Address struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullName"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	Ward      string `json:"ward"`
	District  string `json:"district"`
	City      string `json:"city"`
	IsDefault bool   `json:"isDefault"`
}

// AddressForm is the payload for creating or editing an address.
type AddressForm struct {
	FullName  string `json:"fullName"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	Ward      string `json:"ward"`
	District  string `json:"district"`
	City      string `json:"city"`
	IsDefault bool   `json:"isDefault"`
}

// Complete reports whether every required field is filled.
func (f AddressForm) Complete() bool {
	for _, v := range []string{f.FullName, f.Phone, f.Street, f.Ward, f.District, f.City} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Line renders the address on a single line.
func (a Address) Line() string {
	parts := make([]string, 0, 4)
	for _, v := range []string{a.Street, a.Ward, a.District, a.City} {
		if s := strings.TrimSpace(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
