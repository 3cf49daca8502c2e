package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-storefront-api/internal/model"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory store backing the service and
// handler tests. It implements ProductRepository and TxManager itself; carts
// and users are exposed through the MemoryCarts / MemoryUsers wrappers.
// WithTransaction snapshots state and restores it when fn fails, mirroring
// the rollback semantics of the Postgres store.
type MemoryStore struct {
	mu         sync.RWMutex
	nextItemID uint
	products   map[uuid.UUID]model.Product
	carts      map[uuid.UUID]model.Cart
	users      map[uuid.UUID]model.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextItemID: 1,
		products:   make(map[uuid.UUID]model.Product),
		carts:      make(map[uuid.UUID]model.Cart),
		users:      make(map[uuid.UUID]model.User),
	}
}

var (
	_ ProductRepository = (*MemoryStore)(nil)
	_ TxManager         = (*MemoryStore)(nil)
	_ CartRepository    = (*MemoryCarts)(nil)
	_ UserRepository    = (*MemoryUsers)(nil)
)

// transaction-aware locking helpers: inside WithTransaction the store lock is
// already held, so repository calls marked by the context skip their own locks.
type memTxKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(memTxKey{}).(bool)
	return ok && v
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *MemoryStore) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *MemoryStore) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *MemoryStore) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

// WithTransaction serializes on the store lock and restores the snapshot when
// fn returns an error, emulating a database rollback.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := copyProductMap(m.products)
	carts := copyCartMap(m.carts)
	users := copyUserMap(m.users)
	nextItemID := m.nextItemID

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.products = products
		m.carts = carts
		m.users = users
		m.nextItemID = nextItemID
		return err
	}
	return nil
}

// ---- ProductRepository ----

func (m *MemoryStore) Create(ctx context.Context, product *model.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	stamp(&product.BaseModel)
	m.products[product.ID] = copyProduct(*product)
	return nil
}

func (m *MemoryStore) FindAll(ctx context.Context) ([]model.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, copyProduct(p))
	}
	sortByCreation(out, func(p model.Product) (time.Time, uuid.UUID) { return p.CreatedAt, p.ID })
	return out, nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyProduct(p)
	return &cp, nil
}

func (m *MemoryStore) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, p := range m.products {
		if p.Code == code {
			cp := copyProduct(p)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Update(ctx context.Context, product *model.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[product.ID]; !ok {
		return ErrNotFound
	}
	product.UpdatedAt = time.Now()
	m.products[product.ID] = copyProduct(*product)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < quantity {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return nil
}

// ---- CartRepository ----

type MemoryCarts struct{ store *MemoryStore }

func NewMemoryCarts(store *MemoryStore) *MemoryCarts { return &MemoryCarts{store: store} }

func (mc *MemoryCarts) Create(ctx context.Context, cart *model.Cart) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	for _, c := range mc.store.carts {
		if c.UserID == cart.UserID && c.Status == model.CartInProgress {
			return ErrDuplicateActiveCart
		}
	}
	stamp(&cart.BaseModel)
	if cart.Status == "" {
		cart.Status = model.CartInProgress
	}
	mc.store.carts[cart.ID] = copyCart(*cart)
	return nil
}

func (mc *MemoryCarts) FindByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	c, ok := mc.store.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyCart(c)
	return &cp, nil
}

func (mc *MemoryCarts) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	for _, c := range mc.store.carts {
		if c.UserID == userID && c.Status == model.CartInProgress {
			cp := copyCart(c)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mc *MemoryCarts) FindAllByUser(ctx context.Context, userID uuid.UUID) ([]model.Cart, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]model.Cart, 0)
	for _, c := range mc.store.carts {
		if c.UserID == userID {
			out = append(out, copyCart(c))
		}
	}
	sortByCreation(out, func(c model.Cart) (time.Time, uuid.UUID) { return c.CreatedAt, c.ID })
	return out, nil
}

func (mc *MemoryCarts) SaveItem(ctx context.Context, item *model.CartItem) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	cart, ok := mc.store.carts[item.CartID]
	if !ok {
		return ErrNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Quantity = item.Quantity
			item.ID = cart.Items[i].ID
			mc.store.carts[cart.ID] = cart
			return nil
		}
	}
	item.ID = mc.store.nextItemID
	mc.store.nextItemID++
	cart.Items = append(cart.Items, *item)
	mc.store.carts[cart.ID] = cart
	return nil
}

func (mc *MemoryCarts) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	cart, ok := mc.store.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			mc.store.carts[cartID] = cart
			return nil
		}
	}
	return ErrNotFound
}

func (mc *MemoryCarts) Delete(ctx context.Context, id uuid.UUID) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if _, ok := mc.store.carts[id]; !ok {
		return ErrNotFound
	}
	delete(mc.store.carts, id)
	return nil
}

func (mc *MemoryCarts) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	cart, ok := mc.store.carts[id]
	if !ok {
		return ErrNotFound
	}
	cart.Status = model.CartPaid
	cart.PaidAt = &paidAt
	cart.UpdatedAt = paidAt
	mc.store.carts[id] = cart
	return nil
}

// ---- UserRepository ----

type MemoryUsers struct{ store *MemoryStore }

func NewMemoryUsers(store *MemoryStore) *MemoryUsers { return &MemoryUsers{store: store} }

func (mu *MemoryUsers) Create(ctx context.Context, user *model.User) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	for _, u := range mu.store.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	stamp(&user.BaseModel)
	mu.store.users[user.ID] = *user
	return nil
}

func (mu *MemoryUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	for _, u := range mu.store.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mu *MemoryUsers) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	u, ok := mu.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (mu *MemoryUsers) FindAll(ctx context.Context) ([]model.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	out := make([]model.User, 0, len(mu.store.users))
	for _, u := range mu.store.users {
		out = append(out, u)
	}
	sortByCreation(out, func(u model.User) (time.Time, uuid.UUID) { return u.CreatedAt, u.ID })
	return out, nil
}

func (mu *MemoryUsers) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	u, ok := mu.store.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Password = hashedPassword
	mu.store.users[userID] = u
	return nil
}

// ---- helpers ----

func stamp(base *model.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

func sortByCreation[T any](s []T, key func(T) (time.Time, uuid.UUID)) {
	sort.Slice(s, func(i, j int) bool {
		ti, idi := key(s[i])
		tj, idj := key(s[j])
		if ti.Equal(tj) {
			return idi.String() < idj.String()
		}
		return ti.Before(tj)
	})
}

func copyProduct(p model.Product) model.Product {
	p.Thumbnails = append([]string(nil), p.Thumbnails...)
	return p
}

func copyCart(c model.Cart) model.Cart {
	c.Items = append([]model.CartItem(nil), c.Items...)
	if c.PaidAt != nil {
		paidAt := *c.PaidAt
		c.PaidAt = &paidAt
	}
	return c
}

func copyProductMap(in map[uuid.UUID]model.Product) map[uuid.UUID]model.Product {
	out := make(map[uuid.UUID]model.Product, len(in))
	for k, v := range in {
		out[k] = copyProduct(v)
	}
	return out
}

func copyCartMap(in map[uuid.UUID]model.Cart) map[uuid.UUID]model.Cart {
	out := make(map[uuid.UUID]model.Cart, len(in))
	for k, v := range in {
		out[k] = copyCart(v)
	}
	return out
}

func copyUserMap(in map[uuid.UUID]model.User) map[uuid.UUID]model.User {
	out := make(map[uuid.UUID]model.User, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
