package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentVNPay PaymentMethod = "vnpay"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentVNPay
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipping   OrderStatus = "shipping"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipping, OrderCancelled},
	OrderShipping:   {OrderDelivered},
	OrderDelivered:  {OrderReturned},
}

// NextStatuses lists the statuses an admin may move the order to.
func (s OrderStatus) NextStatuses() []OrderStatus {
	return orderTransitions[s]
}

// CanTransitionTo reports whether next directly follows s in the delivery pipeline.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipping, OrderDelivered, OrderCancelled, OrderReturned:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// CanTransitionTo follows unpaid -> paid|failed, failed -> paid, paid -> refunded.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentUnpaid:
		return next == PaymentPaid || next == PaymentFailed
	case PaymentFailed:
		return next == PaymentPaid
	case PaymentPaid:
		return next == PaymentRefunded
	}
	return false
}

type OrderItem struct {
	ID          int64            `json:"id"`
	ProductID   int64            `json:"productId"`
	ProductName string           `json:"productName,omitempty"`
	Image       string           `json:"image,omitempty"`
	Quantity    int              `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"salePrice,omitempty"`
}

type Order struct {
	ID             int64            `json:"id"`
	Items          []OrderItem      `json:"items"`
	AddressID      int64            `json:"addressId"`
	Address        *Address         `json:"address,omitempty"`
	PaymentMethod  PaymentMethod    `json:"paymentMethod"`
	OrderStatus    OrderStatus      `json:"orderStatus"`
	PaymentStatus  PaymentStatus    `json:"paymentStatus"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty"`
	OrderTotal     decimal.Decimal  `json:"orderTotal"`
	ShippingFee    *decimal.Decimal `json:"shippingFee,omitempty"`
	Note           string           `json:"note,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Cancellable reports whether the customer may still cancel the order.
func (o Order) Cancellable() bool {
	return o.OrderStatus == OrderPending || o.OrderStatus == OrderProcessing
}

// Item returns the order line with the given id.
func (o Order) Item(id int64) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ID == id {
			return item, true
		}
	}
	return OrderItem{}, false
}

// CreateOrderRequest is the checkout submission payload.
type CreateOrderRequest struct {
	AddressID     int64         `json:"addressId"`
	DiscountCode  string        `json:"discountCode,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Note          string        `json:"note"`
}

// CreatedOrder is the backend response to an order submission. PaymentURL is
// only set for gateway payments.
type CreatedOrder struct {
	Order      Order  `json:"order"`
	PaymentURL string `json:"paymentUrl,omitempty"`
}
