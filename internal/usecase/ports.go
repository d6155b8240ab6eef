package usecase

import (
	"context"
	"time"

	"ecbackend/internal/domain/model"
)

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 呼び出し元の識別情報。グローバルな「現在のユーザー」は持たない。
type Actor struct {
	UserID int64
	Role   model.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// 通知の口。投げっぱなしで、結果を待たない・返さない。
type OrderNotifier interface {
	NotifyOrderCreated(ctx context.Context, order model.Order)
	NotifyOrderShipped(ctx context.Context, order model.Order, trackingNumber string)
	NotifyOrderDelivered(ctx context.Context, order model.Order)
	NotifyOrderCancelled(ctx context.Context, order model.Order)
}

// 通知先が無い場合
type NopNotifier struct{}

func (NopNotifier) NotifyOrderCreated(context.Context, model.Order)           {}
func (NopNotifier) NotifyOrderShipped(context.Context, model.Order, string)   {}
func (NopNotifier) NotifyOrderDelivered(context.Context, model.Order)         {}
func (NopNotifier) NotifyOrderCancelled(context.Context, model.Order)         {}
