package model

import "slices"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
	OrderStatusOnHold     OrderStatus = "ON_HOLD"
)

// 現在のステータス -> 遷移できるステータス
// 終端(DELIVERED/CANCELLED/REFUNDED)はキー自体を持たない。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefunded, OrderStatusOnHold},
	OrderStatusProcessing: {OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded, OrderStatusOnHold},
	OrderStatusConfirmed:  {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded, OrderStatusOnHold},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded, OrderStatusOnHold},
	OrderStatusOnHold:     {OrderStatusPending, OrderStatusProcessing, OrderStatusConfirmed, OrderStatusShipped, OrderStatusRefunded},
}

// キャンセルできるのはこの3つだけ（在庫を戻すため）
var cancellableStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusConfirmed,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded, OrderStatusOnHold:
		return st, true
	}
	return "", false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancelled && !s.Cancellable() {
		return false
	}
	allowed, ok := orderTransitions[s]
	if !ok {
		return false
	}
	return slices.Contains(allowed, next)
}

func (s OrderStatus) Cancellable() bool {
	return slices.Contains(cancellableStatuses, s)
}

func (s OrderStatus) IsTerminal() bool {
	_, ok := orderTransitions[s]
	return !ok
}
