package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/example/pianostore/internal/models"
)

type createPaymentRequest struct {
	OrderID int64 `json:"orderId"`
}

type createPaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

// VerifyVNPayReturn forwards the gateway's return parameters verbatim; the
// backend recomputes the secure hash.
func (c *Client) VerifyVNPayReturn(ctx context.Context, params url.Values) (models.PaymentVerification, error) {
	return call[models.PaymentVerification](ctx, c, RequestOpts{Path: "payments/vnpay/verify", Query: params})
}

// CreateVNPayPayment requests a fresh gateway URL for an unpaid order.
func (c *Client) CreateVNPayPayment(ctx context.Context, orderID int64) (string, error) {
	resp, err := call[createPaymentResponse](ctx, c, RequestOpts{
		Method: http.MethodPost,
		Path:   "payments/vnpay/create",
		Body:   createPaymentRequest{OrderID: orderID},
	})
	return resp.PaymentURL, err
}
