// Package checkout assembles a submittable order from the cart, the address
// book, a discount code and a payment method.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/utils"
)

var (
	ErrNoAddress        = errors.New("choose a saved address or fill in a new one")
	ErrIncompleteForm   = errors.New("the new address is incomplete")
	ErrNoPaymentMethod  = errors.New("choose a payment method")
	ErrSubmitting       = errors.New("order submission already in progress")
	ErrDiscountPending  = errors.New("discount validation already in progress")
	ErrEmptyCode        = errors.New("enter a discount code")
	ErrEmptyCart        = errors.New("the cart is empty")
	ErrCompleted        = errors.New("order already placed")
	ErrClosed           = errors.New("checkout closed")
	ErrDiscarded        = errors.New("result discarded")
	ErrMissingRedirect  = errors.New("payment gateway url missing from order response")
	ErrUnknownPayMethod = errors.New("unsupported payment method")
)

type CartSource interface {
	GetCart(ctx context.Context) (models.Cart, error)
}

type DiscountValidator interface {
	ValidateDiscount(ctx context.Context, code string, subtotal decimal.Decimal) (models.DiscountValidation, error)
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreatedOrder, error)
}

type AddressCreator interface {
	CreateAddress(ctx context.Context, form models.AddressForm) (models.Address, error)
}

// Backend is everything the orchestrator calls.
type Backend interface {
	CartSource
	DiscountValidator
	OrderCreator
	AddressCreator
}

// Totals is derived on every call from the current cart and discount.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Final    decimal.Decimal `json:"final"`
}

// ComputeFinalTotal is max(0, subtotal - discount) + shipping.
func ComputeFinalTotal(subtotal, discount, shipping decimal.Decimal) decimal.Decimal {
	net := subtotal.Sub(discount)
	if net.IsNegative() {
		net = decimal.Zero
	}
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	return net.Add(shipping)
}

// Redirect tells the caller where to send the visitor after submission.
// External redirects are full-page navigations to the payment gateway.
type Redirect struct {
	External bool   `json:"external"`
	URL      string `json:"url"`
}

// Result of a successful submission.
type Result struct {
	Order    models.Order `json:"order"`
	Redirect Redirect     `json:"redirect"`
}

// Snapshot is a copy of the orchestrator state.
type Snapshot struct {
	SelectedAddressID int64                `json:"selectedAddressId,omitempty"`
	UseNewAddress     bool                 `json:"useNewAddress"`
	AddressForm       *models.AddressForm  `json:"addressForm,omitempty"`
	PaymentMethod     models.PaymentMethod `json:"paymentMethod,omitempty"`
	Note              string               `json:"note,omitempty"`
	DiscountCode      string               `json:"discountCode,omitempty"`
	DiscountAmount    decimal.Decimal      `json:"discountAmount"`
	DiscountError     string               `json:"discountError,omitempty"`
	SubmitError       string               `json:"submitError,omitempty"`

	AddressChosen   bool `json:"addressChosen"`
	DiscountApplied bool `json:"discountApplied"`
	PaymentSelected bool `json:"paymentSelected"`
	Submitting      bool `json:"submitting"`
	DiscountPending bool `json:"discountPending"`
	CanSubmit       bool `json:"canSubmit"`
	Completed       bool `json:"completed"`
}

// Orchestrator is the checkout state for one visitor. All methods are safe
// for concurrent use; backend calls happen outside the lock and their results
// are dropped if the orchestrator was closed or the discount was removed
// meanwhile.
type Orchestrator struct {
	mu      sync.Mutex
	backend Backend

	selectedAddressID int64
	useNewAddress     bool
	addressForm       models.AddressForm
	createdAddress    *models.Address

	paymentMethod models.PaymentMethod
	note          string

	discountCode    string
	discountAmount  decimal.Decimal
	discountError   string
	discountPending bool
	discountEpoch   uint64

	submitting  bool
	submitError string
	completed   bool
	closed      bool
}

// New returns an empty checkout bound to backend.
func New(backend Backend) *Orchestrator {
	return &Orchestrator{backend: backend, discountAmount: decimal.Zero}
}

func (o *Orchestrator) bind(backend Backend) {
	o.mu.Lock()
	o.backend = backend
	o.mu.Unlock()
}

// SelectAddress chooses a saved address and drops any new-address form.
func (o *Orchestrator) SelectAddress(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.selectedAddressID = id
	o.useNewAddress = false
}

// UseNewAddress switches to an ad-hoc address.
func (o *Orchestrator) UseNewAddress(form models.AddressForm) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.addressForm != form {
		o.createdAddress = nil
	}
	o.addressForm = form
	o.useNewAddress = true
	o.selectedAddressID = 0
}

func (o *Orchestrator) SetPaymentMethod(m models.PaymentMethod) error {
	if !m.Valid() {
		return ErrUnknownPayMethod
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paymentMethod = m
	return nil
}

func (o *Orchestrator) SetNote(note string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.note = strings.TrimSpace(note)
}

// ApplyDiscount validates code against the subtotal current at call time.
// Re-applying the same code re-validates.
func (o *Orchestrator) ApplyDiscount(ctx context.Context, code string) (decimal.Decimal, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return decimal.Zero, ErrClosed
	}
	if o.discountPending {
		o.mu.Unlock()
		return decimal.Zero, ErrDiscountPending
	}
	if code == "" {
		o.failDiscountLocked("", ErrEmptyCode.Error())
		o.mu.Unlock()
		return decimal.Zero, ErrEmptyCode
	}
	o.discountPending = true
	o.discountEpoch++
	epoch := o.discountEpoch
	backend := o.backend
	o.mu.Unlock()

	validation, err := o.validate(ctx, backend, code)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.discountEpoch == epoch {
		o.discountPending = false
	}
	if o.closed || o.discountEpoch != epoch {
		return decimal.Zero, ErrDiscarded
	}

	if err != nil {
		o.failDiscountLocked(code, services.UserMessage(err))
		return decimal.Zero, err
	}

	amount := validation.DiscountAmount
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	o.discountCode = code
	o.discountAmount = amount
	o.discountError = ""
	return amount, nil
}

func (o *Orchestrator) validate(ctx context.Context, backend Backend, code string) (models.DiscountValidation, error) {
	cart, err := backend.GetCart(ctx)
	if err != nil {
		return models.DiscountValidation{}, fmt.Errorf("load cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return models.DiscountValidation{}, &utils.ValidationError{Field: "discountCode", Message: ErrEmptyCart.Error()}
	}
	return backend.ValidateDiscount(ctx, code, cart.Subtotal())
}

func (o *Orchestrator) failDiscountLocked(code, message string) {
	o.discountCode = code
	o.discountAmount = decimal.Zero
	o.discountError = message
}

// RemoveDiscount clears code, amount and error unconditionally. A validation
// still in flight is discarded when it returns.
func (o *Orchestrator) RemoveDiscount() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.discountEpoch++
	o.discountPending = false
	o.discountCode = ""
	o.discountAmount = decimal.Zero
	o.discountError = ""
}

// Totals recomputes the order totals from the current cart.
func (o *Orchestrator) Totals(ctx context.Context) (Totals, error) {
	o.mu.Lock()
	backend := o.backend
	o.mu.Unlock()

	cart, err := backend.GetCart(ctx)
	if err != nil {
		return Totals{}, err
	}

	o.mu.Lock()
	discount := o.discountAmount
	o.mu.Unlock()

	subtotal := cart.Subtotal()
	shipping := cart.Shipping()
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Final:    ComputeFinalTotal(subtotal, discount, shipping),
	}, nil
}

// Submit places the order. It refuses to run without exactly one address
// source, without a payment method, or while a submission is outstanding.
// On failure the state is kept for a retry.
func (o *Orchestrator) Submit(ctx context.Context) (Result, error) {
	o.mu.Lock()
	if err := o.submitGuardLocked(); err != nil {
		o.mu.Unlock()
		return Result{}, err
	}
	o.submitting = true
	o.submitError = ""

	backend := o.backend
	useNew := o.useNewAddress
	form := o.addressForm
	addressID := o.selectedAddressID
	if useNew && o.createdAddress != nil {
		addressID = o.createdAddress.ID
	}
	req := models.CreateOrderRequest{
		PaymentMethod: o.paymentMethod,
		Note:          o.note,
	}
	if o.discountCode != "" && o.discountError == "" && o.discountAmount.IsPositive() {
		req.DiscountCode = o.discountCode
	}
	o.mu.Unlock()

	if useNew && addressID == 0 {
		address, err := backend.CreateAddress(ctx, form)
		if err != nil {
			return Result{}, o.failSubmit(err)
		}
		o.mu.Lock()
		if o.addressForm == form {
			o.createdAddress = &address
		}
		o.mu.Unlock()
		addressID = address.ID
	}
	req.AddressID = addressID

	created, err := backend.CreateOrder(ctx, req)
	if err != nil {
		return Result{}, o.failSubmit(err)
	}

	result := Result{Order: created.Order}
	switch req.PaymentMethod {
	case models.PaymentVNPay:
		if created.PaymentURL == "" {
			return Result{}, o.failSubmit(ErrMissingRedirect)
		}
		result.Redirect = Redirect{External: true, URL: created.PaymentURL}
	default:
		result.Redirect = Redirect{URL: fmt.Sprintf("/orders/%d/confirmation", created.Order.ID)}
	}

	o.mu.Lock()
	o.submitting = false
	o.completed = true
	o.mu.Unlock()

	return result, nil
}

func (o *Orchestrator) submitGuardLocked() error {
	switch {
	case o.closed:
		return ErrClosed
	case o.completed:
		return ErrCompleted
	case o.submitting:
		return ErrSubmitting
	}
	if err := o.addressGuardLocked(); err != nil {
		return err
	}
	if !o.paymentMethod.Valid() {
		return ErrNoPaymentMethod
	}
	return nil
}

func (o *Orchestrator) addressGuardLocked() error {
	if o.useNewAddress {
		if !o.addressForm.Complete() {
			return ErrIncompleteForm
		}
		return utils.ValidateAddressForm(o.addressForm)
	}
	if o.selectedAddressID <= 0 {
		return ErrNoAddress
	}
	return nil
}

func (o *Orchestrator) failSubmit(err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.submitting = false
	o.submitError = services.UserMessage(err)
	return err
}

// Snapshot copies the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Snapshot{
		SelectedAddressID: o.selectedAddressID,
		UseNewAddress:     o.useNewAddress,
		PaymentMethod:     o.paymentMethod,
		Note:              o.note,
		DiscountCode:      o.discountCode,
		DiscountAmount:    o.discountAmount,
		DiscountError:     o.discountError,
		SubmitError:       o.submitError,
		AddressChosen:     o.addressGuardLocked() == nil,
		DiscountApplied:   o.discountCode != "" && o.discountError == "" && o.discountAmount.IsPositive(),
		PaymentSelected:   o.paymentMethod.Valid(),
		Submitting:        o.submitting,
		DiscountPending:   o.discountPending,
		Completed:         o.completed,
	}
	if o.useNewAddress {
		form := o.addressForm
		s.AddressForm = &form
	}
	s.CanSubmit = o.submitGuardLocked() == nil
	return s
}

// Close discards the orchestrator. Results of calls still in flight will not
// touch its state.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

// Done reports whether the orchestrator can no longer be used.
func (o *Orchestrator) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed || o.completed
}
