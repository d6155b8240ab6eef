package model

import "time"

type InventoryReason string

const (
	//チェックアウトで確保
	InventoryReasonCheckout InventoryReason = "CHECKOUT_RESERVE"
	//キャンセルで戻し
	InventoryReasonCancel InventoryReason = "ORDER_CANCEL_RESTORE"
)

//在庫増減の履歴

type InventoryAdjustment struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64           `gorm:"not null;index" json:"product_id"`
	OrderID     *int64          `gorm:"index" json:"order_id"`
	ActorUserID int64           `gorm:"not null;index" json:"actor_user_id"`
	Delta       int64           `gorm:"not null" json:"delta"`
	Reason      InventoryReason `gorm:"type:varchar(50);not null" json:"reason"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
