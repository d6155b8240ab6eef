package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecbackend/internal/domain/model"
	"ecbackend/internal/repository/repotest"
	"ecbackend/internal/usecase"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// 連番のUUID風ID（先頭8桁が毎回変わる）
type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("%08x-0000-4000-8000-000000000000", g.n.Add(1))
}

// 通知を記録する
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(kind string, o model.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind+":"+o.OrderNumber)
}

func (n *recordingNotifier) NotifyOrderCreated(_ context.Context, o model.Order) { n.add("created", o) }
func (n *recordingNotifier) NotifyOrderShipped(_ context.Context, o model.Order, tracking string) {
	n.add("shipped("+tracking+")", o)
}
func (n *recordingNotifier) NotifyOrderDelivered(_ context.Context, o model.Order) { n.add("delivered", o) }
func (n *recordingNotifier) NotifyOrderCancelled(_ context.Context, o model.Order) { n.add("cancelled", o) }

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedProduct(store *repotest.Store, name, price string, stock int64) model.Product {
	return store.AddProduct(model.Product{
		Name:          name,
		SKU:           "SKU-" + strings.ToUpper(name),
		Price:         money(price),
		StockQuantity: stock,
		IsActive:      true,
	})
}

func validAddress() model.Address {
	return model.Address{
		RecipientName: "Hanako Yamada",
		Street:        "1-2-3 Shibuya",
		City:          "Shibuya-ku",
		State:         "Tokyo",
		ZipCode:       "150-0002",
		Country:       "JP",
	}
}

func checkoutInput() usecase.CheckoutInput {
	return usecase.CheckoutInput{
		ShippingAddress:       validAddress(),
		UseShippingForBilling: true,
		PaymentMethod:         model.PaymentMethodCreditCard,
	}
}

func addToCart(t *testing.T, carts *usecase.CartStore, userID, productID, qty int64) {
	t.Helper()
	_, err := carts.AddItem(context.Background(), userID, usecase.AddCartItemInput{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

func assertStock(t *testing.T, store *repotest.Store, productID int64, want int64) {
	t.Helper()
	assert.Equal(t, want, store.Product(productID).StockQuantity, "stock of product %d", productID)
}
