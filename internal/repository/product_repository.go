package repository

import (
	"context"

	"ecbackend/internal/domain/model"
)

// 商品の参照だけを約束（カタログのCRUDは別システム）。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// 見つかったものだけ返す
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
}
