package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ecbackend/internal/domain/model"
)

// 入力不正。永続化に触る前に返す。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func newValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func newNotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, Key: strconv.FormatInt(id, 10)}
}

type CartEmptyError struct {
	UserID int64
}

func (e *CartEmptyError) Error() string {
	return fmt.Sprintf("cart of user %d is empty", e.UserID)
}

// 非公開・削除済みの商品
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is unavailable", e.ProductID)
}

type InsufficientStockError struct {
	ProductID int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

// 本人でも管理者でもない
type UnauthorizedError struct {
	UserID int64
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %d unauthorized: %s", e.UserID, e.Reason)
}

type InvalidStateTransitionError struct {
	From      model.OrderStatus
	Attempted model.OrderStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.Attempted)
}

var ErrCheckoutTimeout = errors.New("checkout timed out")

// HTTPレスポンス用の形。handlerはこれだけを見る。
type HTTPError struct {
	Status  int
	Message string
	Code    string
	Details map[string]interface{}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 業務エラーをHTTPErrorに変換する。該当しなければ500（中身は出さない）。
func ToHTTPError(err error) *HTTPError {
	if he, ok := AsHTTPError(err); ok {
		return he
	}

	var (
		ve *ValidationError
		nf *NotFoundError
		ce *CartEmptyError
		pu *ProductUnavailableError
		is *InsufficientStockError
		ue *UnauthorizedError
		st *InvalidStateTransitionError
	)
	switch {
	case errors.As(err, &ve):
		return &HTTPError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: ve.Error(),
			Details: map[string]interface{}{"field": ve.Field}}
	case errors.As(err, &nf):
		return &HTTPError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: nf.Error()}
	case errors.As(err, &ce):
		return &HTTPError{Status: http.StatusBadRequest, Code: "CART_EMPTY", Message: "cart empty"}
	case errors.As(err, &pu):
		return &HTTPError{Status: http.StatusConflict, Code: "PRODUCT_UNAVAILABLE", Message: pu.Error(),
			Details: map[string]interface{}{"product_id": pu.ProductID}}
	case errors.As(err, &is):
		return &HTTPError{Status: http.StatusConflict, Code: "INSUFFICIENT_STOCK", Message: is.Error(),
			Details: map[string]interface{}{"product_id": is.ProductID, "available": is.Available, "requested": is.Requested}}
	case errors.As(err, &ue):
		return &HTTPError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "forbidden"}
	case errors.As(err, &st):
		return &HTTPError{Status: http.StatusConflict, Code: "INVALID_STATE_TRANSITION", Message: st.Error(),
			Details: map[string]interface{}{"from": st.From, "attempted": st.Attempted}}
	case errors.Is(err, ErrCheckoutTimeout):
		return &HTTPError{Status: http.StatusGatewayTimeout, Code: "CHECKOUT_TIMEOUT", Message: "checkout timed out"}
	}
	return &HTTPError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}
