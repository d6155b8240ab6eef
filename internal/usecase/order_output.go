package usecase

import (
	"time"

	"ecbackend/internal/domain/model"
)

type OrderItemOutput struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	ImageURL  string `json:"image_url"`
	Price     string `json:"price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	OrderNumber     string            `json:"order_number"`
	UserID          int64             `json:"user_id"`
	Status          string            `json:"status"`
	PaymentMethod   string            `json:"payment_method"`
	PaymentStatus   string            `json:"payment_status"`
	Subtotal        string            `json:"subtotal"`
	Tax             string            `json:"tax"`
	Shipping        string            `json:"shipping"`
	Discount        string            `json:"discount"`
	Total           string            `json:"total"`
	ShippingAddress model.Address     `json:"shipping_address"`
	BillingAddress  model.Address     `json:"billing_address"`
	TrackingNumber  string            `json:"tracking_number,omitempty"`
	ShippingMethod  string            `json:"shipping_method,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ShippedAt       *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	Items           []OrderItemOutput `json:"items"`
}

// 一覧用
type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.ProductName,
			SKU:       it.ProductSKU,
			ImageURL:  it.ProductImageURL,
			Price:     it.Price.StringFixed(2),
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal.StringFixed(2),
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Subtotal:        o.Subtotal.StringFixed(2),
		Tax:             o.TaxAmount.StringFixed(2),
		Shipping:        o.ShippingAmount.StringFixed(2),
		Discount:        o.DiscountAmount.StringFixed(2),
		Total:           o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		TrackingNumber:  o.TrackingNumber,
		ShippingMethod:  o.ShippingMethod,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		Items:           outItems,
	}
}
