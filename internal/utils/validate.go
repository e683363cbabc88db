package utils

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/example/pianostore/internal/models"
)

const MinPasswordLength = 6

var phonePattern = regexp.MustCompile(`^(\+84|0)[0-9]{9,10}$`)

// ValidationError is a local, field-level failure caught before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ValidateEmail rejects empty or malformed addresses.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return invalid("email", "email is invalid")
	}
	return nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// ValidateCredentials checks a login form.
func ValidateCredentials(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}

// ValidatePhone accepts Vietnamese mobile numbers.
func ValidatePhone(phone string) error {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if phone == "" {
		return invalid("phone", "phone is required")
	}
	if !phonePattern.MatchString(phone) {
		return invalid("phone", "phone is invalid")
	}
	return nil
}

// ValidateAddressForm requires every field and a valid phone.
func ValidateAddressForm(form models.AddressForm) error {
	required := []struct {
		field string
		value string
	}{
		{"fullName", form.FullName},
		{"street", form.Street},
		{"ward", form.Ward},
		{"district", form.District},
		{"city", form.City},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(r.field, r.field+" is required")
		}
	}
	return ValidatePhone(form.Phone)
}

// ValidateReturnRequest checks a return against the order line it targets.
func ValidateReturnRequest(req models.CreateReturnRequest, item models.OrderItem) error {
	if req.Quantity <= 0 {
		return invalid("quantity", "quantity must be positive")
	}
	if req.Quantity > item.Quantity {
		return invalid("quantity", fmt.Sprintf("quantity cannot exceed %d", item.Quantity))
	}
	if strings.TrimSpace(req.Reason) == "" {
		return invalid("reason", "reason is required")
	}
	return nil
}
