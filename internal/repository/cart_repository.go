package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"ecbackend/internal/domain/model"
)

type CartRepository interface {
	// 無ければ作って返す
	GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 無ければ作り、行ロック(FOR UPDATE)を取って返す。Tx内で使う。
	LockByUserID(ctx context.Context, userID int64) (model.Cart, error)
	UpdateTotals(ctx context.Context, cartID int64, totalItems int64, totalAmount decimal.Decimal) error
	// 明細を全削除して合計を0に戻す
	Clear(ctx context.Context, cartID int64) error
}
