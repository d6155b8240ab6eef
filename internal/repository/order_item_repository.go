package repository

import (
	"context"

	"ecbackend/internal/domain/model"
)

type OrderItemRepository interface {
	// itemsのOrderIDとIDを埋める
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
