package repotest

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ecbackend/internal/domain/model"
	repo "ecbackend/internal/repository"
)

type txRepos struct {
	store *Store
	st    *state
}

func (r *txRepos) Orders() repo.OrderRepository         { return &orderRepo{r} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return &orderItemRepo{r} }
func (r *txRepos) Carts() repo.CartRepository           { return &cartRepo{r} }
func (r *txRepos) CartItems() repo.CartItemRepository   { return &cartItemRepo{r} }
func (r *txRepos) Inventory() repo.InventoryRepository  { return &inventoryRepo{r} }
func (r *txRepos) Products() repo.ProductRepository     { return &productRepo{r} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return &auditLogRepo{r} }

// ---- products ----

type productRepo struct{ *txRepos }

func (r *productRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	if err := r.store.inject(ctx, "Products.FindByID"); err != nil {
		return model.Product{}, err
	}
	p, ok := r.st.products[id]
	if !ok || p.DeletedAt.Valid {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if err := r.store.inject(ctx, "Products.FindByIDs"); err != nil {
		return nil, err
	}
	out := []model.Product{}
	for _, id := range ids {
		if p, ok := r.st.products[id]; ok && !p.DeletedAt.Valid {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- inventory ----

type inventoryRepo struct{ *txRepos }

func (r *inventoryRepo) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	if err := r.store.inject(ctx, "Inventory.DecreaseStockIfEnough"); err != nil {
		return false, err
	}
	p, ok := r.st.products[productID]
	if !ok || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	r.st.products[productID] = p
	return true, nil
}

func (r *inventoryRepo) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	if err := r.store.inject(ctx, "Inventory.IncreaseStock"); err != nil {
		return err
	}
	p, ok := r.st.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.StockQuantity += qty
	r.st.products[productID] = p
	return nil
}

func (r *inventoryRepo) StockOf(ctx context.Context, productID int64) (int64, error) {
	p, ok := r.st.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return p.StockQuantity, nil
}

func (r *inventoryRepo) CreateAdjustments(ctx context.Context, adjs []model.InventoryAdjustment) error {
	if err := r.store.inject(ctx, "Inventory.CreateAdjustments"); err != nil {
		return err
	}
	for _, a := range adjs {
		a.ID = r.st.newID()
		r.st.adjustments = append(r.st.adjustments, a)
	}
	return nil
}

// ---- carts ----

type cartRepo struct{ *txRepos }

func (r *cartRepo) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if err := r.store.inject(ctx, "Carts.GetOrCreateByUserID"); err != nil {
		return model.Cart{}, err
	}
	if c, ok := r.st.cartByUser(userID); ok {
		return c, nil
	}
	now := time.Now()
	c := model.Cart{
		ID:          r.st.newID(),
		UserID:      userID,
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.st.carts[c.ID] = c
	return c, nil
}

// トランザクション全体が直列なのでロックは不要
func (r *cartRepo) LockByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return r.GetOrCreateByUserID(ctx, userID)
}

func (r *cartRepo) UpdateTotals(ctx context.Context, cartID int64, totalItems int64, totalAmount decimal.Decimal) error {
	c, ok := r.st.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	c.TotalItems = totalItems
	c.TotalAmount = totalAmount
	c.UpdatedAt = time.Now()
	r.st.carts[cartID] = c
	return nil
}

func (r *cartRepo) Clear(ctx context.Context, cartID int64) error {
	if err := r.store.inject(ctx, "Carts.Clear"); err != nil {
		return err
	}
	c, ok := r.st.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	for id, it := range r.st.cartItems {
		if it.CartID == cartID {
			delete(r.st.cartItems, id)
		}
	}
	c.TotalItems = 0
	c.TotalAmount = decimal.Zero
	r.st.carts[cartID] = c
	return nil
}

// ---- cart items ----

type cartItemRepo struct{ *txRepos }

func (r *cartItemRepo) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	if err := r.store.inject(ctx, "CartItems.ListByCartID"); err != nil {
		return nil, err
	}
	items := r.st.cartItemsOf(cartID)
	if items == nil {
		items = []model.CartItem{}
	}
	return items, nil
}

func (r *cartItemRepo) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	it, ok := r.st.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (r *cartItemRepo) FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error) {
	for _, it := range r.st.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (r *cartItemRepo) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	if _, err := r.FindByCartAndProduct(ctx, item.CartID, item.ProductID); err == nil {
		return model.CartItem{}, repo.ErrDuplicate
	}
	now := time.Now()
	item.ID = r.st.newID()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.st.cartItems[item.ID] = item
	return item, nil
}

func (r *cartItemRepo) Update(ctx context.Context, item model.CartItem) error {
	cur, ok := r.st.cartItems[item.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Quantity = item.Quantity
	cur.Price = item.Price
	cur.Subtotal = item.Subtotal
	cur.UpdatedAt = time.Now()
	r.st.cartItems[item.ID] = cur
	return nil
}

func (r *cartItemRepo) DeleteByID(ctx context.Context, cartItemID int64) error {
	if _, ok := r.st.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.st.cartItems, cartItemID)
	return nil
}

// ---- orders ----

type orderRepo struct{ *txRepos }

func (r *orderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *orderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	for _, o := range r.st.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r *orderRepo) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	_, err := r.FindByOrderNumber(ctx, orderNumber)
	return err == nil, nil
}

func (r *orderRepo) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range r.st.orders {
		if o.UserID == userID {
			all = append(all, o)
		}
	}
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	if err := r.store.inject(ctx, "Orders.Create"); err != nil {
		return err
	}
	for _, o := range r.st.orders {
		if o.OrderNumber == order.OrderNumber {
			return repo.ErrDuplicate
		}
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil &&
			o.UserID == order.UserID && *o.IdempotencyKey == *order.IdempotencyKey {
			return repo.ErrDuplicate
		}
	}
	now := time.Now()
	order.ID = r.st.newID()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.st.orders[order.ID] = *order
	return nil
}

func (r *orderRepo) UpdateIfStatus(ctx context.Context, orderID int64, expected model.OrderStatus, upd repo.OrderUpdate) (bool, error) {
	if err := r.store.inject(ctx, "Orders.UpdateIfStatus"); err != nil {
		return false, err
	}
	o, ok := r.st.orders[orderID]
	if !ok || o.Status != expected {
		return false, nil
	}
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
	o.UpdatedAt = time.Now()
	r.st.orders[orderID] = o
	return true, nil
}

func (r *orderRepo) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range r.st.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r *orderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	var all []model.Order
	for _, o := range r.st.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		all = append(all, o)
	}
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

// id降順でページング
func paginate(all []model.Order, page, limit int) []model.Order {
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.Order{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// ---- order items ----

type orderItemRepo struct{ *txRepos }

func (r *orderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if err := r.store.inject(ctx, "OrderItems.CreateBulk"); err != nil {
		return err
	}
	for i := range items {
		items[i].ID = r.st.newID()
		items[i].OrderID = orderID
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = time.Now()
		}
		r.st.orderItems[items[i].ID] = items[i]
	}
	return nil
}

func (r *orderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return r.st.orderItemsOf(orderID), nil
}

// ---- audit logs ----

type auditLogRepo struct{ *txRepos }

func (r *auditLogRepo) Create(ctx context.Context, log model.AuditLog) error {
	if err := r.store.inject(ctx, "AuditLogs.Create"); err != nil {
		return err
	}
	log.ID = r.st.newID()
	r.st.auditLogs = append(r.st.auditLogs, log)
	return nil
}
