package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細
// 追加/更新時点の価格を保存。(cart_id, product_id)で一意。
type CartItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64           `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID int64           `gorm:"not null;uniqueIndex:idx_cart_items_cart_product;index" json:"product_id"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Subtotal  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 価格と数量から小計を決める
func (it *CartItem) Reprice(price decimal.Decimal, qty int64) {
	it.Price = price
	it.Quantity = qty
	it.Subtotal = price.Mul(decimal.NewFromInt(qty))
}
