package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細
// 購入時点の商品名/SKU/画像/単価をコピーして持つ。後から商品が変わっても変えない。
type OrderItem struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID         int64           `gorm:"not null;index" json:"order_id"`
	ProductID       int64           `gorm:"not null;index" json:"product_id"`
	ProductName     string          `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductSKU      string          `gorm:"type:varchar(100);not null" json:"product_sku"`
	ProductImageURL string          `gorm:"type:varchar(500)" json:"product_image_url"`
	Price           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity        int64           `gorm:"not null" json:"quantity"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
