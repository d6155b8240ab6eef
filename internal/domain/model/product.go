package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品。カタログ側が所有し、在庫数だけInventoryLedgerが更新する。
type Product struct {
	ID            int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string           `gorm:"type:varchar(255);not null" json:"name"`
	SKU           string           `gorm:"type:varchar(100);not null;uniqueIndex" json:"sku"`
	Description   string           `gorm:"type:text" json:"description"`
	Price         decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	DiscountPrice *decimal.Decimal `gorm:"type:numeric(12,2)" json:"discount_price,omitempty"`
	StockQuantity int64            `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	ImageURL      string           `gorm:"type:varchar(500)" json:"image_url"`
	IsActive      bool             `gorm:"not null;default:false" json:"is_active"`
	CreatedAt     time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
}

// 割引価格があればそちらを使う
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}
