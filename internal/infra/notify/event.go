// Package notify は注文イベントを非同期で外部に流す。
// 送信の成否は注文処理の結果に影響しない。
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecbackend/internal/domain/model"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderShipped   = "order.shipped"
	EventOrderDelivered = "order.delivered"
	EventOrderCancelled = "order.cancelled"
)

type Event struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
	OrderID        int64     `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	UserID         int64     `json:"user_id"`
	Status         string    `json:"status"`
	Total          string    `json:"total"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
}

func newEvent(eventType string, o model.Order, now time.Time) Event {
	return Event{
		EventID:        uuid.NewString(),
		Type:           eventType,
		OccurredAt:     now.UTC(),
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Total:          o.TotalAmount.StringFixed(2),
		TrackingNumber: o.TrackingNumber,
	}
}

// 送信先の一時的な失敗。ログとメトリクスに残して捨てる。
type TransientInfraError struct {
	Op  string
	Err error
}

func (e *TransientInfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientInfraError) Unwrap() error {
	return e.Err
}
