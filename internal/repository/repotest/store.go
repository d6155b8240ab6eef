// Package repotest はテスト用のインメモリ実装。
// WithinTxは全体を1本のmutexで直列化し、状態のコピーに対して実行してエラー時は捨てる。
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecbackend/internal/domain/model"
	repo "ecbackend/internal/repository"
)

type Store struct {
	mu    sync.Mutex
	state *state

	faultMu sync.Mutex
	faults  map[string]error
	delays  map[string]time.Duration

	txCount int
}

func NewStore() *Store {
	return &Store{
		state:  newState(),
		faults: map[string]error{},
		delays: map[string]time.Duration{},
	}
}

// 指定した操作でerrを返させる（例: "OrderItems.CreateBulk"）
func (s *Store) Fail(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = err
}

// 指定した操作をdだけ遅らせる。ctxが先に切れたらctx.Err()を返す。
func (s *Store) Delay(op string, d time.Duration) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.delays[op] = d
}

func (s *Store) inject(ctx context.Context, op string) error {
	s.faultMu.Lock()
	err := s.faults[op]
	d := s.delays[op]
	s.faultMu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(&txRepos{store: s, st: work}); err != nil {
		return err
	}
	// commit前にctxが切れていたらrollback
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// 開始されたトランザクション数
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// ---- seed / inspect ----

func (s *Store) AddProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.state.newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.state.products[p.ID] = p
	return p
}

// カタログ側の更新を模す
func (s *Store) UpdateProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

func (s *Store) Product(id int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id]
}

func (s *Store) AddOrder(o model.Order, items []model.OrderItem) (model.Order, []model.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.state.newID()
	}
	s.state.orders[o.ID] = o
	for i := range items {
		items[i].ID = s.state.newID()
		items[i].OrderID = o.ID
		s.state.orderItems[items[i].ID] = items[i]
	}
	return o, items
}

func (s *Store) Order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orders[id]
}

func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) OrderItems(orderID int64) []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orderItemsOf(orderID)
}

// カートと明細（無ければゼロ値）
func (s *Store) Cart(userID int64) (model.Cart, []model.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.cartByUser(userID)
	if !ok {
		return model.Cart{}, nil
	}
	return c, s.state.cartItemsOf(c.ID)
}

func (s *Store) Adjustments() []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InventoryAdjustment(nil), s.state.adjustments...)
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.state.auditLogs...)
}

// ---- state ----

type state struct {
	seq         int64
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	orderItems  map[int64]model.OrderItem
	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog
}

func newState() *state {
	return &state{
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64]model.OrderItem{},
	}
}

func (st *state) newID() int64 {
	st.seq++
	return st.seq
}

// 値はすべて値型かイミュータブルなポインタなのでmapのコピーで足りる
func (st *state) clone() *state {
	c := newState()
	c.seq = st.seq
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.carts {
		c.carts[k] = v
	}
	for k, v := range st.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.orderItems {
		c.orderItems[k] = v
	}
	c.adjustments = append([]model.InventoryAdjustment(nil), st.adjustments...)
	c.auditLogs = append([]model.AuditLog(nil), st.auditLogs...)
	return c
}

func (st *state) cartByUser(userID int64) (model.Cart, bool) {
	for _, c := range st.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return model.Cart{}, false
}

func (st *state) cartItemsOf(cartID int64) []model.CartItem {
	var out []model.CartItem
	for _, it := range st.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *state) orderItemsOf(orderID int64) []model.OrderItem {
	out := []model.OrderItem{}
	for _, it := range st.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
