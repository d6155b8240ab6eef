package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ecbackend/internal/domain/model"
	"ecbackend/internal/domain/pricing"
)

// 注文番号の採番リトライ上限
const maxOrderNumberAttempts = 10

var ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")

// OrderFactory は確定済みのカート内容と金額から注文と明細を組み立てる。
// 永続化はしない。
type OrderFactory struct {
	clock Clock
	ids   IDGenerator
}

func NewOrderFactory(clock Clock, ids IDGenerator) *OrderFactory {
	return &OrderFactory{clock: clock, ids: ids}
}

type BuildOrderInput struct {
	UserID                int64
	OrderNumber           string
	Snapshot              model.CartSnapshot
	Products              map[int64]model.Product
	Pricing               pricing.Breakdown
	ShippingAddress       model.Address
	BillingAddress        *model.Address
	UseShippingForBilling bool
	PaymentMethod         model.PaymentMethod
	Notes                 string
	IdempotencyKey        string
}

// ORD-<uuid先頭8桁(大文字)>-<unix millisの下4桁>
func (f *OrderFactory) orderNumber() string {
	hex := strings.ToUpper(strings.ReplaceAll(f.ids.NewID(), "-", ""))
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return fmt.Sprintf("ORD-%s-%04d", hex, f.clock.Now().UnixMilli()%10000)
}

// 既存と被らない番号を探す。上限回数で諦める。
func (f *OrderFactory) NewOrderNumber(ctx context.Context, exists func(ctx context.Context, orderNumber string) (bool, error)) (string, error) {
	for i := 0; i < maxOrderNumberAttempts; i++ {
		num := f.orderNumber()
		taken, err := exists(ctx, num)
		if err != nil {
			return "", fmt.Errorf("check order number: %w", err)
		}
		if !taken {
			return num, nil
		}
	}
	return "", ErrOrderNumberExhausted
}

// 注文と明細を作る。明細には今この時点の商品情報をコピーする。
func (f *OrderFactory) Build(in BuildOrderInput) (model.Order, []model.OrderItem) {
	now := f.clock.Now()

	billing := in.ShippingAddress
	if !in.UseShippingForBilling && in.BillingAddress != nil {
		billing = *in.BillingAddress
	}

	var idemKey *string
	if in.IdempotencyKey != "" {
		k := in.IdempotencyKey
		idemKey = &k
	}

	order := model.Order{
		OrderNumber:     in.OrderNumber,
		UserID:          in.UserID,
		Subtotal:        in.Pricing.Subtotal,
		TaxAmount:       in.Pricing.Tax,
		ShippingAmount:  in.Pricing.Shipping,
		DiscountAmount:  in.Pricing.Discount,
		TotalAmount:     in.Pricing.Total,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billing,
		Status:          model.OrderStatusPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   model.PaymentStatusPending,
		Notes:           in.Notes,
		IdempotencyKey:  idemKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := make([]model.OrderItem, 0, len(in.Snapshot.Lines))
	for _, l := range in.Snapshot.Lines {
		p := in.Products[l.ProductID]
		items = append(items, model.OrderItem{
			ProductID:       l.ProductID,
			ProductName:     p.Name,
			ProductSKU:      p.SKU,
			ProductImageURL: p.ImageURL,
			Price:           l.Price,
			Quantity:        l.Quantity,
			Subtotal:        l.Price.Mul(decimal.NewFromInt(l.Quantity)),
			CreatedAt:       now,
		})
	}
	return order, items
}

// 明細から金額計算用の行を作る
func pricingLines(snap model.CartSnapshot) []pricing.Line {
	lines := make([]pricing.Line, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, pricing.Line{Price: l.Price, Quantity: l.Quantity})
	}
	return lines
}
