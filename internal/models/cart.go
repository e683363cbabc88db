package models

import "github.com/shopspring/decimal"

// CartItem is a single line of the session cart.
type CartItem struct {
	ID          int64            `json:"id"`
	ProductID   int64            `json:"productId"`
	ProductName string           `json:"productName,omitempty"`
	Image       string           `json:"image,omitempty"`
	Quantity    int              `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"salePrice,omitempty"`
}

// EffectivePrice prefers the sale price when one is set.
func (i CartItem) EffectivePrice() decimal.Decimal {
	if i.SalePrice != nil {
		return *i.SalePrice
	}
	return i.UnitPrice
}

// LineTotal is the effective price times quantity, clamped at zero.
func (i CartItem) LineTotal() decimal.Decimal {
	if i.Quantity <= 0 {
		return decimal.Zero
	}
	price := i.EffectivePrice()
	if price.IsNegative() {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the current user's cart as returned by the backend.
type Cart struct {
	ID          int64            `json:"id,omitempty"`
	Items       []CartItem       `json:"items"`
	ShippingFee *decimal.Decimal `json:"shippingFee,omitempty"`
}

// Subtotal sums line totals. An empty cart yields zero.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Shipping returns the shipping fee or zero when the backend sent none.
func (c *Cart) Shipping() decimal.Decimal {
	if c == nil || c.ShippingFee == nil || c.ShippingFee.IsNegative() {
		return decimal.Zero
	}
	return *c.ShippingFee
}

// ItemCount is the total quantity across lines.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, item := range c.Items {
		if item.Quantity > 0 {
			n += item.Quantity
		}
	}
	return n
}
