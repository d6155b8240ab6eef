package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculator_Compute(t *testing.T) {
	calc := NewCalculator()

	tests := []struct {
		name     string
		lines    []Line
		discount decimal.Decimal
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{
			name:     "two lines three items",
			lines:    []Line{{Price: d("10.00"), Quantity: 2}, {Price: d("5.00"), Quantity: 1}},
			subtotal: "25.00", tax: "2.50", shipping: "6.00", total: "33.50",
		},
		{
			name:     "empty",
			lines:    nil,
			subtotal: "0", tax: "0", shipping: "0", total: "0",
		},
		{
			name:     "single item base shipping only",
			lines:    []Line{{Price: d("19.99"), Quantity: 1}},
			subtotal: "19.99", tax: "2.00", shipping: "5.00", total: "26.99",
		},
		{
			name:     "tax rounds half up",
			lines:    []Line{{Price: d("0.25"), Quantity: 1}},
			subtotal: "0.25", tax: "0.03", shipping: "5.00", total: "5.28",
		},
		{
			name:     "discount subtracted",
			lines:    []Line{{Price: d("10.00"), Quantity: 2}, {Price: d("5.00"), Quantity: 1}},
			discount: d("3.50"),
			subtotal: "25.00", tax: "2.50", shipping: "6.00", total: "30.00",
		},
		{
			name:     "negative discount ignored",
			lines:    []Line{{Price: d("10.00"), Quantity: 1}},
			discount: d("-1.00"),
			subtotal: "10.00", tax: "1.00", shipping: "5.00", total: "16.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := calc.Compute(tt.lines, tt.discount)

			assert.True(t, b.Subtotal.Equal(d(tt.subtotal)), "subtotal=%s", b.Subtotal)
			assert.True(t, b.Tax.Equal(d(tt.tax)), "tax=%s", b.Tax)
			assert.True(t, b.Shipping.Equal(d(tt.shipping)), "shipping=%s", b.Shipping)
			assert.True(t, b.Total.Equal(d(tt.total)), "total=%s", b.Total)

			// total = subtotal + tax + shipping - discount
			assert.True(t, b.Total.Equal(b.Subtotal.Add(b.Tax).Add(b.Shipping).Sub(b.Discount)))
		})
	}
}

func TestCalculator_Shipping_PerExtraItem(t *testing.T) {
	calc := NewCalculator()

	b := calc.Compute([]Line{{Price: d("1.00"), Quantity: 11}}, decimal.Zero)

	assert.Equal(t, int64(11), b.TotalItems)
	assert.Equal(t, "10.00", b.Shipping.StringFixed(2))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "0.01", RoundMoney(d("0.005")).StringFixed(2))
	assert.Equal(t, "2.35", RoundMoney(d("2.345")).StringFixed(2))
	assert.Equal(t, "2.34", RoundMoney(d("2.3449")).StringFixed(2))
}
