// Package pricing は注文金額（小計・税・送料・合計）を計算する。
// 金額はすべてdecimalで扱い、丸めは小数第2位で四捨五入（half-up）。
package pricing

import "github.com/shopspring/decimal"

var (
	DefaultTaxRate         = decimal.RequireFromString("0.10")
	DefaultShippingBase    = decimal.RequireFromString("5.00")
	DefaultShippingPerItem = decimal.RequireFromString("0.50")
)

// 単価と数量
type Line struct {
	Price    decimal.Decimal
	Quantity int64
}

type Breakdown struct {
	TotalItems int64
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Shipping   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
}

// 状態を持たない。ゼロ値ではなくNewCalculatorを使う。
type Calculator struct {
	TaxRate         decimal.Decimal
	ShippingBase    decimal.Decimal
	ShippingPerItem decimal.Decimal
}

func NewCalculator() Calculator {
	return Calculator{
		TaxRate:         DefaultTaxRate,
		ShippingBase:    DefaultShippingBase,
		ShippingPerItem: DefaultShippingPerItem,
	}
}

// discountが負ならゼロ扱い
func (c Calculator) Compute(lines []Line, discount decimal.Decimal) Breakdown {
	subtotal := decimal.Zero
	var totalItems int64
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(l.Quantity)))
		totalItems += l.Quantity
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	tax := RoundMoney(subtotal.Mul(c.TaxRate))
	shipping := c.shipping(totalItems)

	return Breakdown{
		TotalItems: totalItems,
		Subtotal:   subtotal,
		Tax:        tax,
		Shipping:   shipping,
		Discount:   discount,
		Total:      subtotal.Add(tax).Add(shipping).Sub(discount),
	}
}

// 1点目はbase、2点目以降は1点ごとにperItemを加算
func (c Calculator) shipping(totalItems int64) decimal.Decimal {
	if totalItems <= 0 {
		return decimal.Zero
	}
	extra := decimal.NewFromInt(totalItems - 1)
	return RoundMoney(c.ShippingBase.Add(c.ShippingPerItem.Mul(extra)))
}

// 小数第2位へ丸める。金額は非負なのでhalf away from zero = half-up。
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
