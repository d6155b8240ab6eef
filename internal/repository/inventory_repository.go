package repository

import (
	"context"

	"ecbackend/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫が足りるときだけ減算（1文の条件付きUPDATE）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 現在の在庫数
	StockOf(ctx context.Context, productID int64) (int64, error)

	// 増減履歴作成
	CreateAdjustments(ctx context.Context, adjustments []model.InventoryAdjustment) error
}
