package models

import "time"

// PaymentVerification is the backend verdict on a gateway return.
type PaymentVerification struct {
	IsVerified bool   `json:"isVerified"`
	IsSuccess  bool   `json:"isSuccess"`
	Message    string `json:"message"`
	OrderID    int64  `json:"orderId,omitempty"`
}

// PaymentReturnRecord stores every verification attempt made by the gateway.
type PaymentReturnRecord struct {
	LedgerRecord
	Provider      string    `gorm:"index" json:"provider"`
	OrderRef      string    `gorm:"index" json:"orderRef"`
	TransactionNo string    `json:"transactionNo"`
	ResponseCode  string    `json:"responseCode"`
	RawParams     []byte    `gorm:"type:jsonb" json:"rawParams"`
	Outcome       string    `gorm:"index" json:"outcome"`
	IsVerified    bool      `json:"isVerified"`
	IsSuccess     bool      `json:"isSuccess"`
	Message       string    `json:"message"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

// OrderPaymentSnapshot is the last reconciled payment state per order reference.
type OrderPaymentSnapshot struct {
	LedgerRecord
	OrderRef      string        `gorm:"uniqueIndex" json:"orderRef"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	TransactionNo string        `json:"transactionNo"`
	LastMessage   string        `json:"lastMessage"`
	ReconciledAt  time.Time     `json:"reconciledAt"`
}
