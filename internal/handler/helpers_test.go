package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ecbackend/internal/config"
	"ecbackend/internal/domain/model"
	"ecbackend/internal/handler"
	"ecbackend/internal/middleware"
	"ecbackend/internal/repository/repotest"
	"ecbackend/internal/usecase"
	"ecbackend/internal/validator"
)

const testSecret = "handler-test-secret"

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("%08x-0000-4000-8000-000000000000", g.n.Add(1))
}

// token_versionは全員0
type stubUsers struct{}

func (stubUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	return &model.User{ID: id, TokenVersion: 0, IsActive: true}, nil
}

type testApp struct {
	e     *echo.Echo
	store *repotest.Store
}

func newTestApp(t *testing.T, limiter *middleware.UserRateLimiter) *testApp {
	t.Helper()

	store := repotest.NewStore()
	cfg := config.Config{JWTSecret: testSecret}

	carts := usecase.NewCartStore(store)
	checkout := usecase.NewCheckoutCoordinator(usecase.CheckoutDeps{
		Tx:      store,
		Carts:   carts,
		Factory: usecase.NewOrderFactory(fixedClock{}, &seqIDs{}),
	})
	lifecycle := usecase.NewOrderLifecycleManager(usecase.LifecycleDeps{Tx: store, Clock: fixedClock{}})
	query := usecase.NewOrderQuery(store)

	e := echo.New()
	e.Validator = validator.New()
	handler.NewCartHandler(carts).RegisterRoutes(e, cfg, stubUsers{})
	handler.NewOrderHandler(checkout, lifecycle, query, limiter).RegisterRoutes(e, cfg, stubUsers{})
	handler.NewAdminOrderHandler(lifecycle, query).RegisterRoutes(e, cfg, stubUsers{})

	return &testApp{e: e, store: store}
}

func (a *testApp) seedProduct(name, price string, stock int64) model.Product {
	return a.store.AddProduct(model.Product{
		Name:          name,
		SKU:           "SKU-" + name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	})
}

func bearer(t *testing.T, userID int64, role model.Role) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": userID, "role": string(role), "tv": 0, "exp": time.Now().Add(time.Hour).Unix()}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

// bodyはnilならなし。headersは key,value の順。
func (a *testApp) do(t *testing.T, method, path, auth string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func shippingAddress() map[string]string {
	return map[string]string{
		"recipient_name": "Hanako Yamada",
		"street":         "1-2-3 Shibuya",
		"city":           "Shibuya-ku",
		"state":          "Tokyo",
		"zip_code":       "150-0002",
		"country":        "JP",
	}
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"shipping_address": shippingAddress(),
		"payment_method":   "CREDIT_CARD",
	}
}

func (a *testApp) addToCart(t *testing.T, auth string, productID, qty int64) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/cart/items", auth, map[string]int64{"product_id": productID, "quantity": qty})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (a *testApp) checkout(t *testing.T, auth string) usecase.OrderOutput {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/orders", auth, checkoutBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[usecase.OrderOutput](t, rec)
}
