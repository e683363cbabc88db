// Package payment resolves payment gateway returns into order outcomes.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/services"
)

const ProviderVNPay = "vnpay"

// Fields the gateway appends to the return URL. They are only read for
// bookkeeping; the outcome comes from the backend verdict alone.
const (
	paramOrderRef      = "vnp_TxnRef"
	paramTransactionNo = "vnp_TransactionNo"
	paramResponseCode  = "vnp_ResponseCode"
	paramAmount        = "vnp_Amount"
	gatewayApproved    = "00"
)

const (
	MessageNoParams = "No payment information was found. Check your orders for the latest status."
	MessageFailed   = "The payment was not completed."
	MessagePaid     = "Payment successful. Thank you for your order!"
)

var (
	ErrNotPayable = errors.New("order does not need payment")
	ErrNoURL      = errors.New("payment gateway url missing from response")
)

type State string

const (
	StateNeutral State = "neutral"
	StateSuccess State = "success"
	StateFailure State = "failure"
	StateError   State = "error"
)

// Outcome is what the return page renders.
type Outcome struct {
	State         State  `json:"state"`
	Message       string `json:"message"`
	OrderRef      string `json:"orderRef,omitempty"`
	OrderID       int64  `json:"orderId,omitempty"`
	TransactionNo string `json:"transactionNo,omitempty"`
}

type Verifier interface {
	VerifyVNPayReturn(ctx context.Context, params url.Values) (models.PaymentVerification, error)
}

type PaymentCreator interface {
	CreateVNPayPayment(ctx context.Context, orderID int64) (string, error)
}

// Recorder keeps an audit trail of returns and the last known payment state.
type Recorder interface {
	RecordReturn(ctx context.Context, rec *models.PaymentReturnRecord) error
	Reconcile(ctx context.Context, orderRef string, status models.PaymentStatus, transactionNo, message string, at time.Time) error
}

type Alerter interface {
	NotifyPaymentReturn(ctx context.Context, alert services.PaymentAlert) error
}

// Handler verifies gateway returns. Recorder and alerter are optional.
type Handler struct {
	recorder Recorder
	alerter  Alerter
	now      func() time.Time
	dispatch func(func())
}

func NewHandler(recorder Recorder, alerter Alerter) *Handler {
	return &Handler{
		recorder: recorder,
		alerter:  alerter,
		now:      time.Now,
		dispatch: func(fn func()) { go fn() },
	}
}

// VerifyReturn forwards params verbatim to the backend and maps its verdict.
// Success requires isVerified && isSuccess; the raw response code never
// decides the outcome.
func (h *Handler) VerifyReturn(ctx context.Context, verifier Verifier, params url.Values) Outcome {
	if len(params) == 0 {
		return Outcome{State: StateNeutral, Message: MessageNoParams}
	}

	outcome := Outcome{
		OrderRef:      params.Get(paramOrderRef),
		TransactionNo: params.Get(paramTransactionNo),
	}

	verification, err := verifier.VerifyVNPayReturn(ctx, params)
	switch {
	case err != nil && isTransport(err):
		log.Printf("[Payment] Verification unavailable for %s: %v", outcome.OrderRef, err)
		outcome.State = StateError
		outcome.Message = services.MessageUnavailable
	case err != nil && isBackendFault(err):
		log.Printf("[Payment] Verification errored for %s: %v", outcome.OrderRef, err)
		outcome.State = StateError
		outcome.Message = services.MessageFailed
	case err != nil:
		log.Printf("[Payment] Verification rejected for %s: %v", outcome.OrderRef, err)
		outcome.State = StateFailure
		outcome.Message = services.UserMessage(err)
	case verification.IsVerified && verification.IsSuccess:
		outcome.State = StateSuccess
		outcome.Message = firstNonEmpty(verification.Message, MessagePaid)
		outcome.OrderID = verification.OrderID
	default:
		outcome.State = StateFailure
		outcome.Message = firstNonEmpty(verification.Message, MessageFailed)
		outcome.OrderID = verification.OrderID
	}

	h.record(ctx, params, verification, outcome)
	h.alert(ctx, params, verification, outcome)

	return outcome
}

func (h *Handler) record(ctx context.Context, params url.Values, v models.PaymentVerification, outcome Outcome) {
	if h.recorder == nil {
		return
	}

	raw, err := json.Marshal(params)
	if err != nil {
		raw = nil
	}

	rec := &models.PaymentReturnRecord{
		Provider:      ProviderVNPay,
		OrderRef:      outcome.OrderRef,
		TransactionNo: outcome.TransactionNo,
		ResponseCode:  params.Get(paramResponseCode),
		RawParams:     raw,
		Outcome:       string(outcome.State),
		IsVerified:    v.IsVerified,
		IsSuccess:     v.IsSuccess,
		Message:       outcome.Message,
		ReceivedAt:    h.now(),
	}
	if err := h.recorder.RecordReturn(ctx, rec); err != nil {
		log.Printf("[Payment] Failed to record return for %s: %v", outcome.OrderRef, err)
	}

	if !v.IsVerified || outcome.OrderRef == "" || outcome.State == StateError {
		return
	}

	status := models.PaymentFailed
	if v.IsSuccess {
		status = models.PaymentPaid
	}
	if err := h.recorder.Reconcile(ctx, outcome.OrderRef, status, outcome.TransactionNo, outcome.Message, rec.ReceivedAt); err != nil {
		log.Printf("[Payment] Failed to reconcile %s: %v", outcome.OrderRef, err)
	}
}

// alert reports confirmed payments and returns where the gateway code claims
// approval but the backend disagrees.
func (h *Handler) alert(ctx context.Context, params url.Values, v models.PaymentVerification, outcome Outcome) {
	if h.alerter == nil || outcome.State == StateError {
		return
	}

	code := params.Get(paramResponseCode)
	mismatch := code == gatewayApproved && outcome.State != StateSuccess
	if outcome.State != StateSuccess && !mismatch {
		return
	}

	alert := services.PaymentAlert{
		OrderRef:      outcome.OrderRef,
		TransactionNo: outcome.TransactionNo,
		ResponseCode:  code,
		Amount:        gatewayAmount(params.Get(paramAmount)),
		Verified:      v.IsVerified,
		Success:       v.IsSuccess,
		Message:       outcome.Message,
	}

	alertCtx := context.WithoutCancel(ctx)
	h.dispatch(func() {
		ctx, cancel := context.WithTimeout(alertCtx, 15*time.Second)
		defer cancel()
		if err := h.alerter.NotifyPaymentReturn(ctx, alert); err != nil {
			log.Printf("[Payment] Telegram alert failed for %s: %v", alert.OrderRef, err)
		}
	})
}

// RetryPayment asks the backend for a fresh gateway URL for an order that
// still needs payment.
func (h *Handler) RetryPayment(ctx context.Context, creator PaymentCreator, order models.Order) (string, error) {
	if !NeedsPayment(order) {
		return "", ErrNotPayable
	}

	paymentURL, err := creator.CreateVNPayPayment(ctx, order.ID)
	if err != nil {
		return "", fmt.Errorf("create payment for order %d: %w", order.ID, err)
	}
	if paymentURL == "" {
		return "", ErrNoURL
	}
	return paymentURL, nil
}

// NeedsPayment reports whether a gateway order can still be paid.
func NeedsPayment(order models.Order) bool {
	if order.PaymentMethod != models.PaymentVNPay {
		return false
	}
	if order.OrderStatus == models.OrderCancelled || order.OrderStatus == models.OrderReturned {
		return false
	}
	return order.PaymentStatus == models.PaymentUnpaid || order.PaymentStatus == models.PaymentFailed
}

func isTransport(err error) bool {
	return errors.Is(err, services.ErrTransport) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// isBackendFault reports a verify call that produced no verdict: a 5xx or a
// body that is not an envelope.
func isBackendFault(err error) bool {
	if errors.Is(err, services.ErrMalformed) {
		return true
	}
	var apiErr *services.APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 500
}

// gatewayAmount converts the gateway's minor-unit amount (x100).
func gatewayAmount(raw string) decimal.Decimal {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return decimal.Zero
	}
	return decimal.New(n, -2)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
