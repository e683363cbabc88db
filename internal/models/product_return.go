package models

import "time"

type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "PENDING"
	ReturnApproved  ReturnStatus = "APPROVED"
	ReturnRejected  ReturnStatus = "REJECTED"
	ReturnCompleted ReturnStatus = "COMPLETED"
)

// Valid reports whether s is a known return status.
func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnPending, ReturnApproved, ReturnRejected, ReturnCompleted:
		return true
	}
	return false
}

// ProductReturn is a customer request to send back part of a delivered order.
type ProductReturn struct {
	ID          int64        `json:"id"`
	OrderID     int64        `json:"orderId"`
	OrderItemID int64        `json:"orderItemId"`
	Quantity    int          `json:"quantity"`
	Reason      string       `json:"reason"`
	Status      ReturnStatus `json:"status"`
	AdminNote   string       `json:"adminNote,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Cancellable reports whether the requester may still withdraw the return.
func (r ProductReturn) Cancellable() bool {
	return r.Status == ReturnPending
}

type CreateReturnRequest struct {
	OrderID     int64  `json:"orderId"`
	OrderItemID int64  `json:"orderItemId"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason"`
}
