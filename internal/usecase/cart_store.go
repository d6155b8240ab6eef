package usecase

import (
	"context"
	"errors"
	"fmt"

	"ecbackend/internal/domain/model"
	repo "ecbackend/internal/repository"
)

// CartStore は /cart の業務ロジックです。
// 1ユーザー1カート。更新はカート行をロックして直列化し、明細と合計を同じTxで書く。
type CartStore struct {
	tx repo.TransactionManager
}

func NewCartStore(tx repo.TransactionManager) *CartStore {
	return &CartStore{tx: tx}
}

type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     string `json:"price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	// 非公開になった商品はfalse（チェックアウトで弾かれる）
	Available bool `json:"available"`
}

type CartResponse struct {
	ID          int64              `json:"id"`
	Items       []CartItemResponse `json:"items"`
	TotalItems  int64              `json:"total_items"`
	TotalAmount string             `json:"total_amount"`
}

type AddCartItemInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければ作って空を返す）。
func (s *CartStore) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, &UnauthorizedError{UserID: userID, Reason: "no identity"}
	}

	var out CartResponse
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get cart: %w", err)
		}
		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("list cart items: %w", err)
		}
		out, err = buildCartResponse(ctx, r, cart, items)
		return err
	})
	if err != nil {
		return CartResponse{}, err
	}
	return out, nil
}

// 合計数量
func (s *CartStore) ItemCount(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, &UnauthorizedError{UserID: userID, Reason: "no identity"}
	}

	var count int64
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get cart: %w", err)
		}
		count = cart.TotalItems
		return nil
	})
	return count, err
}

// AddItem はカートに追加（同一商品は数量加算、単価は今の実売価格で取り直す）。
func (s *CartStore) AddItem(ctx context.Context, userID int64, in AddCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, &UnauthorizedError{UserID: userID, Reason: "no identity"}
	}
	if in.ProductID <= 0 {
		return CartResponse{}, newValidationError("product_id", "must be positive")
	}
	if in.Quantity < 1 {
		return CartResponse{}, newValidationError("quantity", "must be at least 1")
	}

	return s.mutate(ctx, userID, func(r repo.TxRepos, cart model.Cart) error {
		p, err := activeProduct(ctx, r, in.ProductID)
		if err != nil {
			return err
		}

		existing, err := r.CartItems().FindByCartAndProduct(ctx, cart.ID, in.ProductID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("find cart item: %w", err)
		}
		found := err == nil

		newQty := existing.Quantity + in.Quantity
		if newQty > p.StockQuantity {
			return &InsufficientStockError{ProductID: p.ID, Available: p.StockQuantity, Requested: newQty}
		}

		if found {
			existing.Reprice(p.EffectivePrice(), newQty)
			if err := r.CartItems().Update(ctx, existing); err != nil {
				return fmt.Errorf("update cart item: %w", err)
			}
			return nil
		}

		item := model.CartItem{CartID: cart.ID, ProductID: p.ID}
		item.Reprice(p.EffectivePrice(), newQty)
		if _, err := r.CartItems().Create(ctx, item); err != nil {
			return fmt.Errorf("create cart item: %w", err)
		}
		return nil
	})
}

// 数量変更（所有チェック＋在庫チェック）。
func (s *CartStore) UpdateQuantity(ctx context.Context, userID int64, cartItemID int64, qty int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, &UnauthorizedError{UserID: userID, Reason: "no identity"}
	}
	if qty < 1 {
		return CartResponse{}, newValidationError("quantity", "must be at least 1")
	}

	return s.mutate(ctx, userID, func(r repo.TxRepos, cart model.Cart) error {
		item, err := ownedItem(ctx, r, cart, cartItemID)
		if err != nil {
			return err
		}

		p, err := activeProduct(ctx, r, item.ProductID)
		if err != nil {
			return err
		}
		if qty > p.StockQuantity {
			return &InsufficientStockError{ProductID: p.ID, Available: p.StockQuantity, Requested: qty}
		}

		item.Reprice(p.EffectivePrice(), qty)
		if err := r.CartItems().Update(ctx, item); err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
		return nil
	})
}

// 明細削除
func (s *CartStore) RemoveItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, &UnauthorizedError{UserID: userID, Reason: "no identity"}
	}

	return s.mutate(ctx, userID, func(r repo.TxRepos, cart model.Cart) error {
		if _, err := ownedItem(ctx, r, cart, cartItemID); err != nil {
			return err
		}
		if err := r.CartItems().DeleteByID(ctx, cartItemID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newNotFound("cart item", cartItemID)
			}
			return fmt.Errorf("delete cart item: %w", err)
		}
		return nil
	})
}

// チェックアウト用。呼び出し側のTx内でカート行をロックして明細を読み切る。
func (s *CartStore) LoadSnapshot(ctx context.Context, r repo.TxRepos, userID int64) (model.CartSnapshot, error) {
	cart, err := r.Carts().LockByUserID(ctx, userID)
	if err != nil {
		return model.CartSnapshot{}, fmt.Errorf("lock cart: %w", err)
	}
	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.CartSnapshot{}, fmt.Errorf("list cart items: %w", err)
	}

	snap := model.CartSnapshot{CartID: cart.ID, UserID: userID, Lines: make([]model.CartLine, 0, len(items))}
	for _, it := range items {
		snap.Lines = append(snap.Lines, model.CartLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return snap, nil
}

// 注文確定後にだけ呼ぶ。明細を消して合計を0にする。
func (s *CartStore) Clear(ctx context.Context, r repo.TxRepos, cartID int64) error {
	if err := r.Carts().Clear(ctx, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// カート行をロック→変更→合計再計算を1Txで行う
func (s *CartStore) mutate(ctx context.Context, userID int64, fn func(r repo.TxRepos, cart model.Cart) error) (CartResponse, error) {
	var out CartResponse
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		if err := fn(r, cart); err != nil {
			return err
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return fmt.Errorf("list cart items: %w", err)
		}
		cart.TotalItems, cart.TotalAmount = model.CartTotals(items)
		if err := r.Carts().UpdateTotals(ctx, cart.ID, cart.TotalItems, cart.TotalAmount); err != nil {
			return fmt.Errorf("update cart totals: %w", err)
		}

		out, err = buildCartResponse(ctx, r, cart, items)
		return err
	})
	if err != nil {
		return CartResponse{}, err
	}
	return out, nil
}

func activeProduct(ctx context.Context, r repo.TxRepos, productID int64) (model.Product, error) {
	p, err := r.Products().FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, newNotFound("product", productID)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("find product: %w", err)
	}
	if !p.IsActive {
		return model.Product{}, &ProductUnavailableError{ProductID: productID}
	}
	return p, nil
}

// 他人のカートの明細は「存在しない扱い」
func ownedItem(ctx context.Context, r repo.TxRepos, cart model.Cart, cartItemID int64) (model.CartItem, error) {
	if cartItemID <= 0 {
		return model.CartItem{}, newValidationError("id", "must be positive")
	}
	item, err := r.CartItems().FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && item.CartID != cart.ID) {
		return model.CartItem{}, newNotFound("cart item", cartItemID)
	}
	if err != nil {
		return model.CartItem{}, fmt.Errorf("find cart item: %w", err)
	}
	return item, nil
}

// cartの明細をまとめてCartResponseを作る。
func buildCartResponse(ctx context.Context, r repo.TxRepos, cart model.Cart, items []model.CartItem) (CartResponse, error) {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return CartResponse{}, fmt.Errorf("find products: %w", err)
	}
	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	respItems := make([]CartItemResponse, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			SKU:       p.SKU,
			Price:     it.Price.StringFixed(2),
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal.StringFixed(2),
			Available: ok && p.IsActive,
		})
	}

	return CartResponse{
		ID:          cart.ID,
		Items:       respItems,
		TotalItems:  cart.TotalItems,
		TotalAmount: cart.TotalAmount.StringFixed(2),
	}, nil
}
