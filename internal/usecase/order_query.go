package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecbackend/internal/domain/model"
	repo "ecbackend/internal/repository"
)

const maxPageLimit = 100

// OrderQuery は注文の参照系。本人か管理者だけが見られる。
type OrderQuery struct {
	tx repo.TransactionManager
}

func NewOrderQuery(tx repo.TransactionManager) *OrderQuery {
	return &OrderQuery{tx: tx}
}

func (q *OrderQuery) GetByID(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, newValidationError("id", "must be positive")
	}
	return q.get(ctx, actor, func(r repo.TxRepos) (model.Order, error) {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, newNotFound("order", orderID)
		}
		return o, err
	})
}

func (q *OrderQuery) GetByNumber(ctx context.Context, actor Actor, orderNumber string) (OrderOutput, error) {
	num := strings.TrimSpace(orderNumber)
	if num == "" {
		return OrderOutput{}, newValidationError("order_number", "is required")
	}
	return q.get(ctx, actor, func(r repo.TxRepos) (model.Order, error) {
		o, err := r.Orders().FindByOrderNumber(ctx, num)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Order{}, &NotFoundError{Resource: "order", Key: num}
		}
		return o, err
	})
}

func (q *OrderQuery) get(ctx context.Context, actor Actor, find func(r repo.TxRepos) (model.Order, error)) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, &UnauthorizedError{UserID: actor.UserID, Reason: "no identity"}
	}

	var out OrderOutput
	err := q.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := find(r)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return err
			}
			return fmt.Errorf("find order: %w", err)
		}
		if o.UserID != actor.UserID && !actor.IsAdmin() {
			return &UnauthorizedError{UserID: actor.UserID, Reason: "not owner of order"}
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 自分の注文一覧（新しい順）
func (q *OrderQuery) ListMine(ctx context.Context, userID int64, page, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, &UnauthorizedError{UserID: userID, Reason: "no identity"}
	}
	if err := validatePage(page, limit); err != nil {
		return OrderListOutput{}, err
	}

	return q.list(ctx, page, limit, func(r repo.TxRepos) ([]model.Order, int64, error) {
		return r.Orders().ListByUserID(ctx, userID, page, limit)
	})
}

// 管理者用の一覧
func (q *OrderQuery) AdminList(ctx context.Context, actor Actor, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	if !actor.IsAdmin() {
		return OrderListOutput{}, &UnauthorizedError{UserID: actor.UserID, Reason: "admin only"}
	}
	if err := validatePage(f.Page, f.Limit); err != nil {
		return OrderListOutput{}, err
	}
	if f.Status != "" {
		st, ok := model.ParseOrderStatus(strings.ToUpper(f.Status))
		if !ok {
			return OrderListOutput{}, newValidationError("status", "is not a known order status")
		}
		f.Status = string(st)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderListOutput{}, newValidationError("from", "must not be after to")
	}

	return q.list(ctx, f.Page, f.Limit, func(r repo.TxRepos) ([]model.Order, int64, error) {
		return r.Orders().ListAdmin(ctx, f)
	})
}

func (q *OrderQuery) list(ctx context.Context, page, limit int, find func(r repo.TxRepos) ([]model.Order, int64, error)) (OrderListOutput, error) {
	out := OrderListOutput{Items: []OrderOutput{}, Page: page, Limit: limit}

	err := q.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := find(r)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		out.Total = total

		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
			out.Items = append(out.Items, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func validatePage(page, limit int) error {
	if page < 1 {
		return newValidationError("page", "must be at least 1")
	}
	if limit < 1 || limit > maxPageLimit {
		return newValidationError("limit", "must be between 1 and 100")
	}
	return nil
}
