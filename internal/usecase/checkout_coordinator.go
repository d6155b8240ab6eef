package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"ecbackend/internal/domain/model"
	"ecbackend/internal/domain/pricing"
	"ecbackend/internal/infra/logging"
	"ecbackend/internal/metrics"
	repo "ecbackend/internal/repository"
)

const defaultCheckoutTimeout = 5 * time.Second

// 同じ冪等キーの注文が先に確定していた（Txを巻き戻してから既存注文を返す）
var errIdempotentReplay = errors.New("idempotent replay")

type CheckoutDeps struct {
	Tx       repo.TransactionManager
	Carts    *CartStore
	Factory  *OrderFactory
	Pricing  *pricing.Calculator
	Notifier OrderNotifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger
	Timeout  time.Duration
}

// CheckoutCoordinator はカート→在庫確保→金額計算→注文作成を1Txで行う。
type CheckoutCoordinator struct {
	tx       repo.TransactionManager
	carts    *CartStore
	factory  *OrderFactory
	pricing  pricing.Calculator
	notifier OrderNotifier
	metrics  *metrics.Metrics
	logger   *log.Logger
	timeout  time.Duration
}

func NewCheckoutCoordinator(d CheckoutDeps) *CheckoutCoordinator {
	c := &CheckoutCoordinator{
		tx:       d.Tx,
		carts:    d.Carts,
		factory:  d.Factory,
		pricing:  pricing.NewCalculator(),
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logger:   d.Logger,
		timeout:  d.Timeout,
	}
	if d.Pricing != nil {
		c.pricing = *d.Pricing
	}
	if c.notifier == nil {
		c.notifier = NopNotifier{}
	}
	if c.logger == nil {
		c.logger = logging.Discard("checkout")
	}
	if c.timeout <= 0 {
		c.timeout = defaultCheckoutTimeout
	}
	return c
}

type CheckoutInput struct {
	ShippingAddress       model.Address
	BillingAddress        *model.Address
	UseShippingForBilling bool
	PaymentMethod         model.PaymentMethod
	Notes                 string
	IdempotencyKey        string
}

func (c *CheckoutCoordinator) Checkout(ctx context.Context, userID int64, in CheckoutInput) (OrderOutput, error) {
	start := time.Now()
	out, replayed, err := c.checkout(ctx, userID, in)

	result := checkoutResult(err, replayed)
	c.metrics.ObserveCheckout(result, time.Since(start))

	var stock *InsufficientStockError
	switch {
	case err == nil:
		c.logger.Infoj(log.JSON{"event": "checkout", "result": result, "user_id": userID,
			"order_number": out.OrderNumber, "total": out.Total})
	case errors.As(err, &stock):
		c.metrics.StockShortage(stock.ProductID)
		c.logger.Warnj(log.JSON{"event": "checkout", "result": result, "user_id": userID,
			"product_id": stock.ProductID, "available": stock.Available, "requested": stock.Requested})
	case result == "error" || result == "timeout":
		c.logger.Errorj(log.JSON{"event": "checkout", "result": result, "user_id": userID, "error": err.Error()})
	default:
		c.logger.Infoj(log.JSON{"event": "checkout", "result": result, "user_id": userID, "error": err.Error()})
	}
	return out, err
}

func (c *CheckoutCoordinator) checkout(parent context.Context, userID int64, in CheckoutInput) (OrderOutput, bool, error) {
	if userID <= 0 {
		return OrderOutput{}, false, &UnauthorizedError{UserID: userID, Reason: "no identity"}
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, false, newValidationError("idempotency_key", "must be at most 255 characters")
	}
	in.IdempotencyKey = key
	if err := validateCheckoutInput(in); err != nil {
		return OrderOutput{}, false, err
	}

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var (
		order    model.Order
		items    []model.OrderItem
		replayed bool
	)

	err := c.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		replay := func() (bool, error) {
			if key == "" {
				return false, nil
			}
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil || !found {
				return false, wrapIf(err, "find by idempotency key")
			}
			order, replayed = existing, true
			items, err = r.OrderItems().ListByOrderID(ctx, existing.ID)
			return true, err
		}
		if done, err := replay(); done || err != nil {
			return err
		}

		// 1. カートを読み切る（行ロックで他の更新を待たせる）
		snap, err := c.carts.LoadSnapshot(ctx, r, userID)
		if err != nil {
			return err
		}
		// ロック待ちの間に同じキーの注文が確定していることがあるので、ロック後に引き直す
		if done, err := replay(); done || err != nil {
			return err
		}
		if snap.IsEmpty() {
			return &CartEmptyError{UserID: userID}
		}

		// 2. 公開中の商品か
		products, err := activeProducts(ctx, r, snap.ProductIDs())
		if err != nil {
			return err
		}

		// 3. 在庫確保（商品ID昇順、失敗したら全部戻す）
		ledger := NewInventoryLedger(r.Inventory()).WithLogger(c.logger)
		reservations, err := ledger.ReserveAll(ctx, snap.Lines)
		if err != nil {
			return err
		}

		// 4. 金額
		breakdown := c.pricing.Compute(pricingLines(snap), decimal.Zero)

		// 5. 注文を組み立てる
		num, err := c.factory.NewOrderNumber(ctx, r.Orders().ExistsByOrderNumber)
		if err != nil {
			return err
		}
		order, items = c.factory.Build(BuildOrderInput{
			UserID:                userID,
			OrderNumber:           num,
			Snapshot:              snap,
			Products:              products,
			Pricing:               breakdown,
			ShippingAddress:       in.ShippingAddress,
			BillingAddress:        in.BillingAddress,
			UseShippingForBilling: in.UseShippingForBilling,
			PaymentMethod:         in.PaymentMethod,
			Notes:                 in.Notes,
			IdempotencyKey:        key,
		})

		// 6. 注文・明細・在庫履歴を同じTxで書く
		if err := c.createOrder(ctx, r, &order); err != nil {
			return err
		}
		if err := r.OrderItems().CreateBulk(ctx, order.ID, items); err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		if err := ledger.Journal(ctx, order.ID, userID, model.InventoryReasonCheckout, reservations); err != nil {
			return err
		}

		// 7. カートを空にする
		return c.carts.Clear(ctx, r, snap.CartID)
	})

	if errors.Is(err, errIdempotentReplay) {
		order, items, err = c.loadByIdempotencyKey(parent, userID, key)
		replayed = err == nil
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return OrderOutput{}, false, ErrCheckoutTimeout
		}
		return OrderOutput{}, false, err
	}

	// 8. 通知は確定後に投げっぱなし（失敗してもチェックアウトは成功）
	if !replayed {
		c.notifier.NotifyOrderCreated(context.WithoutCancel(parent), order)
	}
	return toOrderOutput(order, items), replayed, nil
}

func wrapIf(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// 一意制約違反なら、冪等キーの衝突か注文番号の衝突かを見分ける
func (c *CheckoutCoordinator) createOrder(ctx context.Context, r repo.TxRepos, order *model.Order) error {
	for attempt := 1; ; attempt++ {
		err := r.Orders().Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return fmt.Errorf("create order: %w", err)
		}

		if order.IdempotencyKey != nil {
			_, found, ferr := r.Orders().FindByIdempotencyKey(ctx, order.UserID, *order.IdempotencyKey)
			if ferr != nil {
				return fmt.Errorf("find by idempotency key: %w", ferr)
			}
			if found {
				return errIdempotentReplay
			}
		}

		if attempt >= maxOrderNumberAttempts {
			return ErrOrderNumberExhausted
		}
		num, err := c.factory.NewOrderNumber(ctx, r.Orders().ExistsByOrderNumber)
		if err != nil {
			return err
		}
		order.OrderNumber = num
	}
}

func (c *CheckoutCoordinator) loadByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, []model.OrderItem, error) {
	var (
		order model.Order
		items []model.OrderItem
	)
	err := c.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return fmt.Errorf("find by idempotency key: %w", err)
		}
		if !found {
			return errors.New("order for idempotency key vanished")
		}
		order = o
		items, err = r.OrderItems().ListByOrderID(ctx, o.ID)
		return err
	})
	return order, items, err
}

// 全商品が存在して公開中であること
func activeProducts(ctx context.Context, r repo.TxRepos, ids []int64) (map[int64]model.Product, error) {
	ps, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	byID := make(map[int64]model.Product, len(ps))
	for _, p := range ps {
		byID[p.ID] = p
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || !p.IsActive {
			return nil, &ProductUnavailableError{ProductID: id}
		}
	}
	return byID, nil
}

func validateCheckoutInput(in CheckoutInput) error {
	if !in.PaymentMethod.Valid() {
		return newValidationError("payment_method", "is not supported")
	}
	if missing := in.ShippingAddress.MissingFields(); len(missing) > 0 {
		return newValidationError("shipping_address."+missing[0], "is required")
	}
	if !in.UseShippingForBilling && in.BillingAddress != nil {
		if missing := in.BillingAddress.MissingFields(); len(missing) > 0 {
			return newValidationError("billing_address."+missing[0], "is required")
		}
	}
	if len(in.Notes) > 1000 {
		return newValidationError("notes", "must be at most 1000 characters")
	}
	return nil
}

// メトリクス用の結果ラベル
func checkoutResult(err error, replayed bool) string {
	var (
		ve *ValidationError
		ce *CartEmptyError
		pu *ProductUnavailableError
		is *InsufficientStockError
		ue *UnauthorizedError
		nf *NotFoundError
	)
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "success"
	case errors.As(err, &ve), errors.As(err, &ue):
		return "invalid"
	case errors.As(err, &ce):
		return "cart_empty"
	case errors.As(err, &pu), errors.As(err, &nf):
		return "unavailable"
	case errors.As(err, &is):
		return "insufficient_stock"
	case errors.Is(err, ErrCheckoutTimeout):
		return "timeout"
	default:
		return "error"
	}
}
