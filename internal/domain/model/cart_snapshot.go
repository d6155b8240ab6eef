package model

import "github.com/shopspring/decimal"

// チェックアウト用に読み切ったカートの中身
type CartSnapshot struct {
	CartID int64
	UserID int64
	Lines  []CartLine
}

type CartLine struct {
	ProductID int64
	Quantity  int64
	Price     decimal.Decimal
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s CartSnapshot) ProductIDs() []int64 {
	ids := make([]int64, 0, len(s.Lines))
	seen := make(map[int64]struct{}, len(s.Lines))
	for _, l := range s.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
