package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"ecbackend/internal/domain/model"
	"ecbackend/internal/infra/logging"
	"ecbackend/internal/metrics"
	repo "ecbackend/internal/repository"
)

const defaultShippingMethod = "Standard Shipping"

type LifecycleDeps struct {
	Tx       repo.TransactionManager
	Clock    Clock
	Notifier OrderNotifier
	Metrics  *metrics.Metrics
	Logger   *log.Logger
}

// OrderLifecycleManager は注文ステータスの遷移を担当する。
// 遷移表で判定 → 期待ステータス付きUPDATE(CAS) → 副作用（在庫戻し・監査ログ）を1Txで行う。
type OrderLifecycleManager struct {
	tx       repo.TransactionManager
	clock    Clock
	notifier OrderNotifier
	metrics  *metrics.Metrics
	logger   *log.Logger
}

func NewOrderLifecycleManager(d LifecycleDeps) *OrderLifecycleManager {
	m := &OrderLifecycleManager{
		tx:       d.Tx,
		clock:    d.Clock,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
	if m.notifier == nil {
		m.notifier = NopNotifier{}
	}
	if m.logger == nil {
		m.logger = logging.Discard("lifecycle")
	}
	return m
}

// 1回の遷移の中身
type transition struct {
	to     model.OrderStatus
	action model.AuditAction
	// 購入者本人にも許すか（キャンセルのみ）
	ownerAllowed bool
	// 遷移元の追加条件（支払い済みチェックなど）
	guard func(o model.Order) bool
	update func(o model.Order, now time.Time) repo.OrderUpdate
	// 在庫を戻す
	restock bool
}

// 発送。追跡番号は必須。
func (m *OrderLifecycleManager) Ship(ctx context.Context, actor Actor, orderID int64, trackingNumber string) (OrderOutput, error) {
	tracking := strings.TrimSpace(trackingNumber)
	if tracking == "" {
		return OrderOutput{}, newValidationError("tracking_number", "is required")
	}
	out, order, err := m.apply(ctx, actor, orderID, transition{
		to:     model.OrderStatusShipped,
		action: model.AuditActionUpdateOrderStatus,
		update: func(_ model.Order, now time.Time) repo.OrderUpdate {
			method := defaultShippingMethod
			return repo.OrderUpdate{
				Status:         model.OrderStatusShipped,
				TrackingNumber: &tracking,
				ShippingMethod: &method,
				ShippedAt:      &now,
			}
		},
	})
	if err == nil {
		m.notifier.NotifyOrderShipped(context.WithoutCancel(ctx), order, tracking)
	}
	return out, err
}

func (m *OrderLifecycleManager) Deliver(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	out, order, err := m.apply(ctx, actor, orderID, transition{
		to:     model.OrderStatusDelivered,
		action: model.AuditActionUpdateOrderStatus,
		update: func(_ model.Order, now time.Time) repo.OrderUpdate {
			return repo.OrderUpdate{Status: model.OrderStatusDelivered, DeliveredAt: &now}
		},
	})
	if err == nil {
		m.notifier.NotifyOrderDelivered(context.WithoutCancel(ctx), order)
	}
	return out, err
}

// キャンセル（本人 or 管理者）。明細ごとに在庫を1回だけ戻す。
// 2回目のキャンセルは遷移表で弾かれるので在庫が二重に戻ることはない。
func (m *OrderLifecycleManager) Cancel(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	out, order, err := m.apply(ctx, actor, orderID, transition{
		to:           model.OrderStatusCancelled,
		action:       model.AuditActionCancelOrder,
		ownerAllowed: true,
		restock:      true,
		update: func(o model.Order, now time.Time) repo.OrderUpdate {
			upd := repo.OrderUpdate{Status: model.OrderStatusCancelled, CancelledAt: &now}
			if o.PaymentStatus == model.PaymentStatusPaid {
				refunded := model.PaymentStatusRefunded
				upd.PaymentStatus = &refunded
			}
			return upd
		},
	})
	if err == nil {
		m.notifier.NotifyOrderCancelled(context.WithoutCancel(ctx), order)
	}
	return out, err
}

// 返金。在庫は戻さない（商品が顧客の手元にある可能性がある）。
func (m *OrderLifecycleManager) Refund(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	out, _, err := m.apply(ctx, actor, orderID, transition{
		to:     model.OrderStatusRefunded,
		action: model.AuditActionUpdateOrderStatus,
		update: func(_ model.Order, _ time.Time) repo.OrderUpdate {
			refunded := model.PaymentStatusRefunded
			return repo.OrderUpdate{Status: model.OrderStatusRefunded, PaymentStatus: &refunded}
		},
	})
	return out, err
}

func (m *OrderLifecycleManager) Hold(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	return m.move(ctx, actor, orderID, model.OrderStatusOnHold)
}

// 支払い確定。PENDINGならPROCESSINGへ進める。
func (m *OrderLifecycleManager) MarkPaid(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	out, _, err := m.apply(ctx, actor, orderID, transition{
		to:     "",
		action: model.AuditActionUpdatePayment,
		guard: func(o model.Order) bool {
			return !o.Status.IsTerminal() && o.PaymentStatus != model.PaymentStatusPaid
		},
		update: func(o model.Order, _ time.Time) repo.OrderUpdate {
			paid := model.PaymentStatusPaid
			next := o.Status
			if o.Status == model.OrderStatusPending {
				next = model.OrderStatusProcessing
			}
			return repo.OrderUpdate{Status: next, PaymentStatus: &paid}
		},
	})
	return out, err
}

// 管理者のステータス更新。行き先ごとに専用の遷移へ振り分ける。
func (m *OrderLifecycleManager) UpdateStatus(ctx context.Context, actor Actor, orderID int64, status string, trackingNumber string) (OrderOutput, error) {
	if !actor.IsAdmin() {
		return OrderOutput{}, &UnauthorizedError{UserID: actor.UserID, Reason: "admin only"}
	}
	next, ok := model.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !ok {
		return OrderOutput{}, newValidationError("status", "is not a known order status")
	}

	switch next {
	case model.OrderStatusShipped:
		return m.Ship(ctx, actor, orderID, trackingNumber)
	case model.OrderStatusDelivered:
		return m.Deliver(ctx, actor, orderID)
	case model.OrderStatusCancelled:
		return m.Cancel(ctx, actor, orderID)
	case model.OrderStatusRefunded:
		return m.Refund(ctx, actor, orderID)
	default:
		return m.move(ctx, actor, orderID, next)
	}
}

// 副作用のない単純な遷移（ON_HOLD/PENDING/PROCESSING/CONFIRMED）
func (m *OrderLifecycleManager) move(ctx context.Context, actor Actor, orderID int64, next model.OrderStatus) (OrderOutput, error) {
	out, _, err := m.apply(ctx, actor, orderID, transition{
		to:     next,
		action: model.AuditActionUpdateOrderStatus,
		update: func(_ model.Order, _ time.Time) repo.OrderUpdate {
			return repo.OrderUpdate{Status: next}
		},
	})
	return out, err
}

func (m *OrderLifecycleManager) apply(ctx context.Context, actor Actor, orderID int64, t transition) (OrderOutput, model.Order, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, model.Order{}, &UnauthorizedError{UserID: actor.UserID, Reason: "no identity"}
	}
	if orderID <= 0 {
		return OrderOutput{}, model.Order{}, newValidationError("id", "must be positive")
	}

	var (
		before model.Order
		after  model.Order
		items  []model.OrderItem
	)
	err := m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return newNotFound("order", orderID)
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		before = o

		if !actor.IsAdmin() && !(t.ownerAllowed && o.UserID == actor.UserID) {
			return &UnauthorizedError{UserID: actor.UserID, Reason: "not owner of order"}
		}

		// 遷移表で判定（状態はまだ触らない）
		attempted := t.to
		if t.guard != nil {
			if !t.guard(o) {
				return &InvalidStateTransitionError{From: o.Status, Attempted: o.Status}
			}
		} else if !o.Status.CanTransitionTo(t.to) {
			return &InvalidStateTransitionError{From: o.Status, Attempted: attempted}
		}

		upd := t.update(o, m.now())
		if attempted == "" {
			attempted = upd.Status
		}

		// CAS。負けたら最新の状態で弾く（副作用はまだ走っていない）
		ok, err := r.Orders().UpdateIfStatus(ctx, orderID, o.Status, upd)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if !ok {
			cur, ferr := r.Orders().FindByID(ctx, orderID)
			if ferr != nil {
				return fmt.Errorf("reload order: %w", ferr)
			}
			return &InvalidStateTransitionError{From: cur.Status, Attempted: attempted}
		}

		items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}

		if t.restock {
			if err := restoreStock(ctx, r, actor, orderID, items); err != nil {
				return err
			}
		}

		after = applyOrderUpdate(o, upd)
		return writeAudit(ctx, r, actor, t.action, before, after, m.now())
	})
	if err != nil {
		m.logFailure(actor, orderID, t, err)
		return OrderOutput{}, model.Order{}, err
	}

	m.metrics.OrderTransition(string(before.Status), string(after.Status))
	m.logger.Infoj(log.JSON{"event": "order_transition", "order_id": orderID, "order_number": after.OrderNumber,
		"actor_user_id": actor.UserID, "from": before.Status, "to": after.Status, "action": t.action})
	return toOrderOutput(after, items), after, nil
}

// 明細ごとに1回だけ戻して履歴を残す
func restoreStock(ctx context.Context, r repo.TxRepos, actor Actor, orderID int64, items []model.OrderItem) error {
	ledger := NewInventoryLedger(r.Inventory())
	restored := make([]Reservation, 0, len(items))
	for _, it := range items {
		if err := ledger.Restore(ctx, it.ProductID, it.Quantity); err != nil {
			return err
		}
		restored = append(restored, Reservation{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return ledger.Journal(ctx, orderID, actor.UserID, model.InventoryReasonCancel, restored)
}

type auditOrderState struct {
	Status         model.OrderStatus   `json:"status"`
	PaymentStatus  model.PaymentStatus `json:"payment_status"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
}

func writeAudit(ctx context.Context, r repo.TxRepos, actor Actor, action model.AuditAction, before, after model.Order, now time.Time) error {
	b, err := json.Marshal(auditOrderState{Status: before.Status, PaymentStatus: before.PaymentStatus, TrackingNumber: before.TrackingNumber})
	if err != nil {
		return err
	}
	a, err := json.Marshal(auditOrderState{Status: after.Status, PaymentStatus: after.PaymentStatus, TrackingNumber: after.TrackingNumber})
	if err != nil {
		return err
	}
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		Action:       action,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   before.ID,
		BeforeJSON:   string(b),
		AfterJSON:    string(a),
		CreatedAt:    now,
	}); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// 書き込んだ内容をメモリ上の注文にも反映する
func applyOrderUpdate(o model.Order, upd repo.OrderUpdate) model.Order {
	o.Status = upd.Status
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.TrackingNumber != nil {
		o.TrackingNumber = *upd.TrackingNumber
	}
	if upd.ShippingMethod != nil {
		o.ShippingMethod = *upd.ShippingMethod
	}
	if upd.ShippedAt != nil {
		o.ShippedAt = upd.ShippedAt
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	if upd.CancelledAt != nil {
		o.CancelledAt = upd.CancelledAt
	}
	return o
}

func (m *OrderLifecycleManager) now() time.Time {
	if m.clock == nil {
		return time.Now()
	}
	return m.clock.Now()
}

func (m *OrderLifecycleManager) logFailure(actor Actor, orderID int64, t transition, err error) {
	fields := log.JSON{"event": "order_transition", "order_id": orderID, "actor_user_id": actor.UserID,
		"to": t.to, "action": t.action, "error": err.Error()}
	if ToHTTPError(err).Status >= 500 {
		m.logger.Errorj(fields)
		return
	}
	m.logger.Warnj(fields)
}
