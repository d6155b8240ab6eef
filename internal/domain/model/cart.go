package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 1ユーザーにつき1カート。チェックアウト後は削除せず中身だけ空にする。
// TotalItems/TotalAmountは明細の合計と常に一致させる。
type Cart struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64           `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalItems  int64           `gorm:"not null;default:0" json:"total_items"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 明細から合計を計算する
func CartTotals(items []CartItem) (int64, decimal.Decimal) {
	var count int64
	amount := decimal.Zero
	for _, it := range items {
		count += it.Quantity
		amount = amount.Add(it.Subtotal)
	}
	return count, amount
}
