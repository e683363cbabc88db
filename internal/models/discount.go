package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DiscountCode is a coupon managed from the admin back-office. Eligibility is
// decided by the backend only.
type DiscountCode struct {
	ID               int64            `json:"id,omitempty"`
	Code             string           `json:"code"`
	DiscountType     DiscountType     `json:"discountType"`
	Value            decimal.Decimal  `json:"value"`
	MinOrderTotal    *decimal.Decimal `json:"minOrderTotal,omitempty"`
	MaxDiscountValue *decimal.Decimal `json:"maxDiscountValue,omitempty"`
	StartDate        *time.Time       `json:"startDate,omitempty"`
	EndDate          *time.Time       `json:"endDate,omitempty"`
	MaxUses          *int             `json:"maxUses,omitempty"`
	UsedCount        int              `json:"usedCount"`
	IsActive         bool             `json:"isActive"`
}

// DiscountValidation is the backend verdict for a code against a subtotal.
type DiscountValidation struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Message        string          `json:"message,omitempty"`
}
