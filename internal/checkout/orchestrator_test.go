package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/services"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fakeBackend struct {
	mu sync.Mutex

	cart        models.Cart
	cartErr     error
	discount    decimal.Decimal
	discountErr error
	gate        chan struct{}

	orderErr   error
	paymentURL string
	nextID     int64

	validatedWith []decimal.Decimal
	orders        []models.CreateOrderRequest
	addresses     []models.AddressForm
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		cart: models.Cart{Items: []models.CartItem{
			{ID: 1, ProductID: 10, Quantity: 1, UnitPrice: dec(1_200_000)},
			{ID: 2, ProductID: 11, Quantity: 2, UnitPrice: dec(300_000)},
		}},
		discount: dec(150_000),
		nextID:   100,
	}
}

func (f *fakeBackend) GetCart(ctx context.Context) (models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart, f.cartErr
}

func (f *fakeBackend) ValidateDiscount(ctx context.Context, code string, subtotal decimal.Decimal) (models.DiscountValidation, error) {
	f.mu.Lock()
	gate := f.gate
	f.validatedWith = append(f.validatedWith, subtotal)
	amount, err := f.discount, f.discountErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return models.DiscountValidation{}, err
	}
	return models.DiscountValidation{Code: code, DiscountAmount: amount}, nil
}

func (f *fakeBackend) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (models.CreatedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	if f.orderErr != nil {
		return models.CreatedOrder{}, f.orderErr
	}
	f.nextID++
	created := models.CreatedOrder{Order: models.Order{ID: f.nextID, PaymentMethod: req.PaymentMethod}}
	if req.PaymentMethod == models.PaymentVNPay {
		created.PaymentURL = f.paymentURL
	}
	return created, nil
}

func (f *fakeBackend) CreateAddress(ctx context.Context, form models.AddressForm) (models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = append(f.addresses, form)
	return models.Address{ID: int64(500 + len(f.addresses)), FullName: form.FullName}, nil
}

func validForm() models.AddressForm {
	return models.AddressForm{
		FullName: "Nguyen Van A",
		Phone:    "0901234567",
		Street:   "12 Le Loi",
		Ward:     "Ben Nghe",
		District: "District 1",
		City:     "Ho Chi Minh City",
	}
}

func TestComputeFinalTotal(t *testing.T) {
	tests := []struct {
		name                         string
		subtotal, discount, shipping int64
		want                         int64
	}{
		{"no discount", 1_800_000, 0, 0, 1_800_000},
		{"discount applied", 1_800_000, 150_000, 0, 1_650_000},
		{"discount above subtotal clamps", 100_000, 150_000, 30_000, 30_000},
		{"shipping added", 500_000, 50_000, 25_000, 475_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFinalTotal(dec(tt.subtotal), dec(tt.discount), dec(tt.shipping))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestFinalTotalIsMonotonic(t *testing.T) {
	amounts := []int64{0, 1, 50_000, 99_999, 100_000, 150_000, 1_000_000, 1_800_000}
	shippings := []int64{0, 30_000}

	for _, ship := range shippings {
		for _, sub := range amounts {
			for _, disc := range amounts {
				final := ComputeFinalTotal(dec(sub), dec(disc), dec(ship))
				assert.False(t, final.IsNegative())

				moreSubtotal := ComputeFinalTotal(dec(sub+10_000), dec(disc), dec(ship))
				assert.True(t, moreSubtotal.GreaterThanOrEqual(final),
					"subtotal %d -> %d lowered final %s -> %s", sub, sub+10_000, final, moreSubtotal)

				moreDiscount := ComputeFinalTotal(dec(sub), dec(disc+10_000), dec(ship))
				assert.True(t, moreDiscount.LessThanOrEqual(final),
					"discount %d -> %d raised final %s -> %s", disc, disc+10_000, final, moreDiscount)
			}
		}
	}
}

func TestCashCheckoutWithDiscount(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)
	ctx := context.Background()

	o.SelectAddress(7)
	require.NoError(t, o.SetPaymentMethod(models.PaymentCash))

	amount, err := o.ApplyDiscount(ctx, " piano10 ")
	require.NoError(t, err)
	assert.True(t, dec(150_000).Equal(amount))
	require.Len(t, backend.validatedWith, 1)
	assert.True(t, dec(1_800_000).Equal(backend.validatedWith[0]))

	totals, err := o.Totals(ctx)
	require.NoError(t, err)
	assert.True(t, dec(1_650_000).Equal(totals.Final))

	result, err := o.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, result.Redirect.External)
	assert.Equal(t, "/orders/101/confirmation", result.Redirect.URL)

	require.Len(t, backend.orders, 1)
	assert.Equal(t, models.CreateOrderRequest{
		AddressID:     7,
		DiscountCode:  "PIANO10",
		PaymentMethod: models.PaymentCash,
	}, backend.orders[0])

	_, err = o.Submit(ctx)
	assert.ErrorIs(t, err, ErrCompleted)
	assert.True(t, o.Done())
}

func TestVNPayCheckoutRedirectsExternally(t *testing.T) {
	backend := newFakeBackend()
	backend.paymentURL = "https://sandbox.vnpayment.vn/pay?x=1"
	o := New(backend)

	o.SelectAddress(7)
	require.NoError(t, o.SetPaymentMethod(models.PaymentVNPay))

	result, err := o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Redirect{External: true, URL: backend.paymentURL}, result.Redirect)
	assert.Empty(t, backend.orders[0].DiscountCode)
}

func TestVNPayWithoutURLFails(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)
	o.SelectAddress(7)
	require.NoError(t, o.SetPaymentMethod(models.PaymentVNPay))

	_, err := o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrMissingRedirect)
	assert.False(t, o.Snapshot().Submitting)
}

func TestSubmitGuards(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)
	ctx := context.Background()

	_, err := o.Submit(ctx)
	assert.ErrorIs(t, err, ErrNoAddress)

	form := validForm()
	form.City = ""
	o.UseNewAddress(form)
	_, err = o.Submit(ctx)
	assert.ErrorIs(t, err, ErrIncompleteForm)

	o.UseNewAddress(validForm())
	_, err = o.Submit(ctx)
	assert.ErrorIs(t, err, ErrNoPaymentMethod)

	assert.ErrorIs(t, o.SetPaymentMethod("crypto"), ErrUnknownPayMethod)
	assert.Empty(t, backend.orders)
	assert.False(t, o.Snapshot().CanSubmit)
}

func TestSelectingAddressDropsNewForm(t *testing.T) {
	o := New(newFakeBackend())
	o.UseNewAddress(validForm())
	o.SelectAddress(3)

	snap := o.Snapshot()
	assert.False(t, snap.UseNewAddress)
	assert.Nil(t, snap.AddressForm)
	assert.Equal(t, int64(3), snap.SelectedAddressID)

	o.UseNewAddress(validForm())
	snap = o.Snapshot()
	assert.True(t, snap.UseNewAddress)
	assert.Zero(t, snap.SelectedAddressID)
	assert.True(t, snap.AddressChosen)
}

func TestNewAddressCreatedOnceAcrossRetries(t *testing.T) {
	backend := newFakeBackend()
	backend.orderErr = &services.APIError{Status: 200, ErrorCode: 4001, Message: "Product out of stock"}
	o := New(backend)
	ctx := context.Background()

	o.UseNewAddress(validForm())
	require.NoError(t, o.SetPaymentMethod(models.PaymentCash))

	_, err := o.Submit(ctx)
	require.Error(t, err)
	snap := o.Snapshot()
	assert.Equal(t, "Product out of stock", snap.SubmitError)
	assert.True(t, snap.UseNewAddress)
	assert.False(t, snap.Submitting)

	backend.mu.Lock()
	backend.orderErr = nil
	backend.mu.Unlock()

	_, err = o.Submit(ctx)
	require.NoError(t, err)
	assert.Len(t, backend.addresses, 1)
	require.Len(t, backend.orders, 2)
	assert.Equal(t, int64(501), backend.orders[1].AddressID)
}

func TestRejectedDiscountZeroesAmount(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)
	ctx := context.Background()

	_, err := o.ApplyDiscount(ctx, "PIANO10")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.discountErr = &services.APIError{Status: 200, ErrorCode: 3002, Message: "Discount code has expired"}
	backend.mu.Unlock()

	_, err = o.ApplyDiscount(ctx, "OLD")
	require.Error(t, err)

	snap := o.Snapshot()
	assert.True(t, snap.DiscountAmount.IsZero())
	assert.Equal(t, "Discount code has expired", snap.DiscountError)
	assert.False(t, snap.DiscountApplied)
}

func TestValidCodeAfterRejectedOne(t *testing.T) {
	backend := newFakeBackend()
	backend.discountErr = &services.APIError{Status: 200, ErrorCode: 3001, Message: "Discount code not found"}
	o := New(backend)
	ctx := context.Background()

	_, err := o.ApplyDiscount(ctx, "NOPE")
	require.Error(t, err)
	require.Equal(t, "Discount code not found", o.Snapshot().DiscountError)

	backend.mu.Lock()
	backend.discountErr = nil
	backend.discount = dec(200_000)
	backend.mu.Unlock()

	amount, err := o.ApplyDiscount(ctx, "piano20")
	require.NoError(t, err)
	assert.True(t, dec(200_000).Equal(amount))

	snap := o.Snapshot()
	assert.Empty(t, snap.DiscountError)
	assert.Equal(t, "PIANO20", snap.DiscountCode)
	assert.True(t, dec(200_000).Equal(snap.DiscountAmount))
	assert.True(t, snap.DiscountApplied)

	totals, err := o.Totals(ctx)
	require.NoError(t, err)
	assert.True(t, dec(200_000).Equal(totals.Discount))
	assert.True(t, totals.Subtotal.Sub(dec(200_000)).Add(totals.Shipping).Equal(totals.Final), "got %s", totals.Final)
}

func TestEmptyCodeIsLocalError(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)

	_, err := o.ApplyDiscount(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCode)
	assert.Empty(t, backend.validatedWith)
	assert.NotEmpty(t, o.Snapshot().DiscountError)
}

func TestDiscountOnEmptyCart(t *testing.T) {
	backend := newFakeBackend()
	backend.cart = models.Cart{}
	o := New(backend)

	_, err := o.ApplyDiscount(context.Background(), "PIANO10")
	require.Error(t, err)
	assert.Empty(t, backend.validatedWith)
	assert.Equal(t, ErrEmptyCart.Error(), o.Snapshot().DiscountError)
}

func TestDiscountTransportFailureShowsGenericMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.discountErr = services.ErrTransport
	o := New(backend)

	_, err := o.ApplyDiscount(context.Background(), "PIANO10")
	require.Error(t, err)
	assert.Equal(t, services.MessageUnavailable, o.Snapshot().DiscountError)
}

func TestRemoveDiscountDiscardsPendingValidation(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	o := New(backend)

	done := make(chan error, 1)
	go func() {
		_, err := o.ApplyDiscount(context.Background(), "PIANO10")
		done <- err
	}()

	require.Eventually(t, func() bool { return o.Snapshot().DiscountPending }, time.Second, 5*time.Millisecond)

	_, err := o.ApplyDiscount(context.Background(), "OTHER")
	assert.ErrorIs(t, err, ErrDiscountPending)

	o.RemoveDiscount()
	close(backend.gate)

	assert.ErrorIs(t, <-done, ErrDiscarded)
	snap := o.Snapshot()
	assert.Empty(t, snap.DiscountCode)
	assert.True(t, snap.DiscountAmount.IsZero())
	assert.False(t, snap.DiscountPending)
}

func TestClosedOrchestratorIgnoresLateResult(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	o := New(backend)

	done := make(chan error, 1)
	go func() {
		_, err := o.ApplyDiscount(context.Background(), "PIANO10")
		done <- err
	}()
	require.Eventually(t, func() bool { return o.Snapshot().DiscountPending }, time.Second, 5*time.Millisecond)

	o.Close()
	close(backend.gate)

	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.True(t, o.Snapshot().DiscountAmount.IsZero())

	_, err := o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTotalsFollowCartChanges(t *testing.T) {
	backend := newFakeBackend()
	o := New(backend)
	ctx := context.Background()

	_, err := o.ApplyDiscount(ctx, "PIANO10")
	require.NoError(t, err)

	fee := dec(40_000)
	backend.mu.Lock()
	backend.cart.Items = backend.cart.Items[:1]
	backend.cart.ShippingFee = &fee
	backend.mu.Unlock()

	totals, err := o.Totals(ctx)
	require.NoError(t, err)
	assert.True(t, dec(1_200_000).Equal(totals.Subtotal))
	assert.True(t, dec(1_090_000).Equal(totals.Final))

	backend.mu.Lock()
	backend.cartErr = errors.New("boom")
	backend.mu.Unlock()
	_, err = o.Totals(ctx)
	assert.Error(t, err)
}

func TestSaleItemScenario(t *testing.T) {
	sale := dec(900_000)
	backend := newFakeBackend()
	backend.cart = models.Cart{Items: []models.CartItem{
		{ID: 1, ProductID: 42, Quantity: 2, UnitPrice: dec(1_000_000), SalePrice: &sale},
	}}
	backend.discount = dec(150_000)
	o := New(backend)
	ctx := context.Background()

	_, err := o.ApplyDiscount(ctx, "SALE10")
	require.NoError(t, err)
	assert.True(t, dec(1_800_000).Equal(backend.validatedWith[0]))

	totals, err := o.Totals(ctx)
	require.NoError(t, err)
	assert.True(t, dec(1_800_000).Equal(totals.Subtotal))
	assert.True(t, dec(1_650_000).Equal(totals.Final))

	o.RemoveDiscount()
	totals, err = o.Totals(ctx)
	require.NoError(t, err)
	assert.True(t, dec(1_800_000).Equal(totals.Final))
}
