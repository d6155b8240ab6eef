package usecase_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecbackend/internal/domain/model"
	"ecbackend/internal/metrics"
	"ecbackend/internal/repository/repotest"
	"ecbackend/internal/usecase"
)

type checkoutFixture struct {
	store    *repotest.Store
	carts    *usecase.CartStore
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	uc       *usecase.CheckoutCoordinator
}

func newCheckoutFixture(timeout time.Duration) *checkoutFixture {
	store := repotest.NewStore()
	carts := usecase.NewCartStore(store)
	notifier := &recordingNotifier{}
	m := metrics.New()
	uc := usecase.NewCheckoutCoordinator(usecase.CheckoutDeps{
		Tx:       store,
		Carts:    carts,
		Factory:  usecase.NewOrderFactory(fixedClock{testNow}, &seqIDs{}),
		Notifier: notifier,
		Metrics:  m,
		Timeout:  timeout,
	})
	return &checkoutFixture{store: store, carts: carts, notifier: notifier, metrics: m, uc: uc}
}

func TestCheckout_ComputesTotalsAndReservesStock(t *testing.T) {
	f := newCheckoutFixture(0)
	a := seedProduct(f.store, "mug", "10.00", 10)
	b := seedProduct(f.store, "spoon", "5.00", 10)
	addToCart(t, f.carts, 1, a.ID, 2)
	addToCart(t, f.carts, 1, b.ID, 1)

	out, err := f.uc.Checkout(context.Background(), 1, checkoutInput())
	require.NoError(t, err)

	assert.Equal(t, "25.00", out.Subtotal)
	assert.Equal(t, "2.50", out.Tax)
	assert.Equal(t, "6.00", out.Shipping)
	assert.Equal(t, "0.00", out.Discount)
	assert.Equal(t, "33.50", out.Total)
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.Equal(t, string(model.PaymentStatusPending), out.PaymentStatus)
	assert.Regexp(t, `^ORD-[0-9A-F]{8}-\d{4}$`, out.OrderNumber)
	assert.Equal(t, validAddress(), out.BillingAddress)
	require.Len(t, out.Items, 2)

	assertStock(t, f.store, a.ID, 8)
	assertStock(t, f.store, b.ID, 9)

	cart, items := f.store.Cart(1)
	assert.Empty(t, items)
	assert.Equal(t, int64(0), cart.TotalItems)
	assert.True(t, cart.TotalAmount.IsZero())

	// 確保の履歴はマイナス
	adjs := f.store.Adjustments()
	require.Len(t, adjs, 2)
	for _, adj := range adjs {
		assert.Equal(t, model.InventoryReasonCheckout, adj.Reason)
		assert.Less(t, adj.Delta, int64(0))
		require.NotNil(t, adj.OrderID)
		assert.Equal(t, out.ID, *adj.OrderID)
	}

	assert.Equal(t, []string{"created:" + out.OrderNumber}, f.notifier.Events())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues("success")))
}

func TestCheckout_InsufficientStockLeavesNoTrace(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "lamp", "20.00", 5)
	addToCart(t, f.carts, 1, p.ID, 3)

	// カートに入れた後で在庫が減った
	p.StockQuantity = 2
	f.store.UpdateProduct(p)

	_, err := f.uc.Checkout(context.Background(), 1, checkoutInput())

	var se *usecase.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, p.ID, se.ProductID)
	assert.Equal(t, int64(2), se.Available)
	assert.Equal(t, int64(3), se.Requested)

	assertStock(t, f.store, p.ID, 2)
	assert.Empty(t, f.store.Orders())
	_, items := f.store.Cart(1)
	assert.Len(t, items, 1)
	assert.Empty(t, f.notifier.Events())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StockShortages.WithLabelValues(strconv.FormatInt(p.ID, 10))))
}

func TestCheckout_MultiItemIsAllOrNothing(t *testing.T) {
	f := newCheckoutFixture(0)
	a := seedProduct(f.store, "desk", "100.00", 4)
	b := seedProduct(f.store, "chair", "50.00", 4)
	addToCart(t, f.carts, 1, a.ID, 2)
	addToCart(t, f.carts, 1, b.ID, 4)

	b.StockQuantity = 1
	f.store.UpdateProduct(b)

	_, err := f.uc.Checkout(context.Background(), 1, checkoutInput())

	var se *usecase.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, b.ID, se.ProductID)
	assertStock(t, f.store, a.ID, 4)
	assertStock(t, f.store, b.ID, 1)
	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.store.Adjustments())
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "ticket", "30.00", 1)
	addToCart(t, f.carts, 1, p.ID, 1)
	addToCart(t, f.carts, 2, p.ID, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Checkout(context.Background(), int64(i+1), checkoutInput())
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		var se *usecase.InsufficientStockError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &se):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assertStock(t, f.store, p.ID, 0)
	assert.Len(t, f.store.Orders(), 1)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(0)

	_, err := f.uc.Checkout(context.Background(), 1, checkoutInput())

	var ce *usecase.CartEmptyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.UserID)
	assert.Empty(t, f.store.Orders())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues("cart_empty")))
}

func TestCheckout_InactiveProductRejected(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "poster", "8.00", 10)
	addToCart(t, f.carts, 1, p.ID, 1)

	p.IsActive = false
	f.store.UpdateProduct(p)

	_, err := f.uc.Checkout(context.Background(), 1, checkoutInput())

	var pu *usecase.ProductUnavailableError
	require.ErrorAs(t, err, &pu)
	assert.Equal(t, p.ID, pu.ProductID)
	assertStock(t, f.store, p.ID, 10)
	assert.Empty(t, f.store.Orders())
}

func TestCheckout_OrderItemsKeepSnapshot(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "book", "12.00", 10)
	addToCart(t, f.carts, 1, p.ID, 1)

	out, err := f.uc.Checkout(context.Background(), 1, checkoutInput())
	require.NoError(t, err)

	p.Name = "book (2nd edition)"
	p.SKU = "SKU-BOOK-2"
	p.Price = money("99.00")
	f.store.UpdateProduct(p)

	items := f.store.OrderItems(out.ID)
	require.Len(t, items, 1)
	assert.Equal(t, "book", items[0].ProductName)
	assert.Equal(t, "SKU-BOOK", items[0].ProductSKU)
	assert.True(t, items[0].Price.Equal(money("12.00")))
	assert.True(t, items[0].Subtotal.Equal(money("12.00")))
}

func TestCheckout_IdempotencyKeyReplaysOrder(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "pen", "1.50", 10)
	addToCart(t, f.carts, 1, p.ID, 2)

	in := checkoutInput()
	in.IdempotencyKey = "req-123"

	first, err := f.uc.Checkout(context.Background(), 1, in)
	require.NoError(t, err)

	second, err := f.uc.Checkout(context.Background(), 1, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Len(t, second.Items, 1)
	assert.Len(t, f.store.Orders(), 1)
	assertStock(t, f.store, p.ID, 8)
	assert.Len(t, f.notifier.Events(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues("replayed")))
}

func TestCheckout_SameKeyDifferentUsersAreIndependent(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "pen", "1.50", 10)
	addToCart(t, f.carts, 1, p.ID, 1)
	addToCart(t, f.carts, 2, p.ID, 1)

	in := checkoutInput()
	in.IdempotencyKey = "shared"

	a, err := f.uc.Checkout(context.Background(), 1, in)
	require.NoError(t, err)
	b, err := f.uc.Checkout(context.Background(), 2, in)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assertStock(t, f.store, p.ID, 8)
}

func TestCheckout_PersistenceFailureRollsBack(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "cable", "3.00", 5)
	addToCart(t, f.carts, 1, p.ID, 2)
	f.store.Fail("OrderItems.CreateBulk", errors.New("disk full"))

	_, err := f.uc.Checkout(context.Background(), 1, checkoutInput())
	require.Error(t, err)
	assert.Equal(t, 500, usecase.ToHTTPError(err).Status)

	assertStock(t, f.store, p.ID, 5)
	assert.Empty(t, f.store.Orders())
	assert.Empty(t, f.store.Adjustments())
	_, items := f.store.Cart(1)
	assert.Len(t, items, 1)
	assert.Empty(t, f.notifier.Events())
}

func TestCheckout_TimeoutLeavesNoPartialCommit(t *testing.T) {
	f := newCheckoutFixture(30 * time.Millisecond)
	p := seedProduct(f.store, "chair", "40.00", 5)
	addToCart(t, f.carts, 1, p.ID, 1)
	f.store.Delay("OrderItems.CreateBulk", time.Second)

	_, err := f.uc.Checkout(context.Background(), 1, checkoutInput())

	assert.ErrorIs(t, err, usecase.ErrCheckoutTimeout)
	assert.Equal(t, 504, usecase.ToHTTPError(err).Status)
	assertStock(t, f.store, p.ID, 5)
	assert.Empty(t, f.store.Orders())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues("timeout")))
}

func TestCheckout_ValidatesInputBeforeTouchingStore(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(in *usecase.CheckoutInput)
		field string
	}{
		{"unknown payment method", func(in *usecase.CheckoutInput) { in.PaymentMethod = "BITCOIN" }, "payment_method"},
		{"missing street", func(in *usecase.CheckoutInput) { in.ShippingAddress.Street = " " }, "shipping_address.street"},
		{"billing incomplete", func(in *usecase.CheckoutInput) {
			in.UseShippingForBilling = false
			in.BillingAddress = &model.Address{RecipientName: "x"}
		}, "billing_address.street"},
		{"notes too long", func(in *usecase.CheckoutInput) {
			b := make([]byte, 1001)
			for i := range b {
				b[i] = 'a'
			}
			in.Notes = string(b)
		}, "notes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCheckoutFixture(0)
			in := checkoutInput()
			tc.edit(&in)

			_, err := f.uc.Checkout(context.Background(), 1, in)

			var ve *usecase.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, 0, f.store.TxCount())
		})
	}
}

func TestCheckout_SeparateBillingAddressIsCopied(t *testing.T) {
	f := newCheckoutFixture(0)
	p := seedProduct(f.store, "hat", "15.00", 3)
	addToCart(t, f.carts, 1, p.ID, 1)

	billing := validAddress()
	billing.City = "Osaka"
	in := checkoutInput()
	in.UseShippingForBilling = false
	in.BillingAddress = &billing

	out, err := f.uc.Checkout(context.Background(), 1, in)
	require.NoError(t, err)

	billing.City = "changed after checkout"
	assert.Equal(t, "Osaka", out.BillingAddress.City)
	assert.Equal(t, "Shibuya-ku", out.ShippingAddress.City)
	assert.Equal(t, "Osaka", f.store.Order(out.ID).BillingAddress.City)
}

func TestCheckout_RequiresIdentity(t *testing.T) {
	f := newCheckoutFixture(0)

	_, err := f.uc.Checkout(context.Background(), 0, checkoutInput())

	var ue *usecase.UnauthorizedError
	assert.ErrorAs(t, err, &ue)
}
