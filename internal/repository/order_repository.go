package repository

import (
	"context"
	"time"

	"ecbackend/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

// ステータス遷移で書き換える項目。nilは変更しない。
type OrderUpdate struct {
	Status         model.OrderStatus
	PaymentStatus  *model.PaymentStatus
	TrackingNumber *string
	ShippingMethod *string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error)
	ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	// 一意制約違反はErrDuplicate
	Create(ctx context.Context, order *model.Order) error

	// statusがexpectedのときだけ更新する（CAS）。更新できなければfalse。
	UpdateIfStatus(ctx context.Context, orderID int64, expected model.OrderStatus, upd OrderUpdate) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
