package handler

import (
	"net/http"
	"strings"

	"ecbackend/internal/config"
	"ecbackend/internal/domain/model"
	"ecbackend/internal/middleware"
	"ecbackend/internal/repository"
	"ecbackend/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	checkout  *usecase.CheckoutCoordinator
	lifecycle *usecase.OrderLifecycleManager
	query     *usecase.OrderQuery
	limiter   *middleware.UserRateLimiter
}

func NewOrderHandler(
	checkout *usecase.CheckoutCoordinator,
	lifecycle *usecase.OrderLifecycleManager,
	query *usecase.OrderQuery,
	limiter *middleware.UserRateLimiter,
) *OrderHandler {
	return &OrderHandler{checkout: checkout, lifecycle: lifecycle, query: query, limiter: limiter}
}

type CheckoutRequest struct {
	ShippingAddress       model.Address  `json:"shipping_address" validate:"required"`
	BillingAddress        *model.Address `json:"billing_address" validate:"omitempty"`
	UseShippingForBilling bool           `json:"use_shipping_for_billing"`
	PaymentMethod         string         `json:"payment_method" validate:"required,oneof=CREDIT_CARD DEBIT_CARD PAYPAL STRIPE CASH_ON_DELIVERY BANK_TRANSFER"`
	Notes                 string         `json:"notes" validate:"max=1000"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	if h.limiter != nil {
		g.POST("", h.create, middleware.UserRateLimit(h.limiter))
	} else {
		g.POST("", h.create)
	}
	g.GET("", h.list)
	g.GET("/number/:number", h.detailByNumber)
	g.GET("/:id", h.detail)
	g.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if idemKey == "" {
		idemKey = strings.TrimSpace(c.Request().Header.Get("X-Idempotency-Key"))
	}

	out, err := h.checkout.Checkout(c.Request().Context(), userID, usecase.CheckoutInput{
		ShippingAddress:       req.ShippingAddress,
		BillingAddress:        req.BillingAddress,
		UseShippingForBilling: req.UseShippingForBilling || req.BillingAddress == nil,
		PaymentMethod:         model.PaymentMethod(req.PaymentMethod),
		Notes:                 req.Notes,
		IdempotencyKey:        idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	page, ok := queryInt(c, "page", 1)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	out, err := h.query.ListMine(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.query.GetByID(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detailByNumber(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.query.GetByNumber(c.Request().Context(), actor, c.Param("number"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.lifecycle.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
