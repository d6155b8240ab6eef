package repository

import (
	"context"

	"ecbackend/internal/domain/model"
	repo "ecbackend/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫が足りるときだけ減らす
// 読んでから書くのではなく、条件付きUPDATE1文で判定する。0件更新なら在庫不足。
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, nil
}

// 在庫戻し（キャンセル）
// 論理削除された商品にも戻す
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *InventoryGormRepository) StockOf(ctx context.Context, productID int64) (int64, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Select("id", "stock_quantity").
		Where("id = ?", productID).
		First(&p).Error
	if err != nil {
		return 0, translate(err)
	}
	return p.StockQuantity, nil
}

// 増減履歴作成
func (r *InventoryGormRepository) CreateAdjustments(ctx context.Context, adjs []model.InventoryAdjustment) error {
	if len(adjs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&adjs).Error; err != nil {
		return err
	}
	return nil
}
