package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/labstack/gommon/log"

	"ecbackend/internal/domain/model"
	"ecbackend/internal/infra/logging"
	repo "ecbackend/internal/repository"
)

// 1回の確保
type Reservation struct {
	ProductID int64
	Quantity  int64
}

// 在庫の確保/戻しを担当する。
// Tx内のInventoryRepositoryごとに作る（Txをまたいで使い回さない）。
type InventoryLedger struct {
	inv      repo.InventoryRepository
	reserved []Reservation
	logger   *log.Logger
}

func NewInventoryLedger(inv repo.InventoryRepository) *InventoryLedger {
	return &InventoryLedger{inv: inv, logger: logging.Discard("ledger")}
}

// 補償に失敗したときの警告の出力先
func (l *InventoryLedger) WithLogger(logger *log.Logger) *InventoryLedger {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// 条件付き減算1回。足りなければInsufficientStockError。
func (l *InventoryLedger) Reserve(ctx context.Context, productID int64, qty int64) error {
	if qty < 1 {
		return newValidationError("quantity", "must be at least 1")
	}

	ok, err := l.inv.DecreaseStockIfEnough(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve product %d: %w", productID, err)
	}
	if !ok {
		available, err := l.inv.StockOf(ctx, productID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("read stock of product %d: %w", productID, err)
		}
		return &InsufficientStockError{ProductID: productID, Available: available, Requested: qty}
	}

	l.reserved = append(l.reserved, Reservation{ProductID: productID, Quantity: qty})
	return nil
}

// 在庫戻し
func (l *InventoryLedger) Restore(ctx context.Context, productID int64, qty int64) error {
	if qty < 1 {
		return newValidationError("quantity", "must be at least 1")
	}
	if err := l.inv.IncreaseStock(ctx, productID, qty); err != nil {
		return fmt.Errorf("restore product %d: %w", productID, err)
	}
	return nil
}

// 全行を商品ID昇順で確保する（同時チェックアウト間でロック順を揃える）。
// 同じ商品が複数行あればまとめて1回で確保する。
// 途中で失敗したら、ここまでに確保した分を戻してからエラーを返す。
func (l *InventoryLedger) ReserveAll(ctx context.Context, lines []model.CartLine) ([]Reservation, error) {
	want := make(map[int64]int64, len(lines))
	for _, ln := range lines {
		want[ln.ProductID] += ln.Quantity
	}
	ids := make([]int64, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := len(l.reserved)
	for _, id := range ids {
		if err := l.Reserve(ctx, id, want[id]); err != nil {
			l.rollback(ctx, start)
			return nil, err
		}
	}
	return append([]Reservation(nil), l.reserved[start:]...), nil
}

// 補償。明示的に戻し、失敗は警告ログに残して続ける。
// 呼び出し側がエラーを返すのでTxのrollbackでも戻る。
func (l *InventoryLedger) rollback(ctx context.Context, from int) {
	for i := len(l.reserved) - 1; i >= from; i-- {
		r := l.reserved[i]
		if err := l.inv.IncreaseStock(ctx, r.ProductID, r.Quantity); err != nil {
			l.logger.Warnj(log.JSON{
				"event":      "compensate_failed",
				"product_id": r.ProductID,
				"quantity":   r.Quantity,
				"error":      err.Error(),
			})
		}
	}
	l.reserved = l.reserved[:from]
}

// 増減履歴を書く。deltaの符号はreasonで決める（確保はマイナス）。
func (l *InventoryLedger) Journal(ctx context.Context, orderID int64, actorID int64, reason model.InventoryReason, rs []Reservation) error {
	adjs := make([]model.InventoryAdjustment, 0, len(rs))
	for _, r := range rs {
		delta := r.Quantity
		if reason == model.InventoryReasonCheckout {
			delta = -delta
		}
		oid := orderID
		adjs = append(adjs, model.InventoryAdjustment{
			ProductID:   r.ProductID,
			OrderID:     &oid,
			ActorUserID: actorID,
			Delta:       delta,
			Reason:      reason,
		})
	}
	if err := l.inv.CreateAdjustments(ctx, adjs); err != nil {
		return fmt.Errorf("journal inventory: %w", err)
	}
	return nil
}
