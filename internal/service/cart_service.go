package service

import (
	"context"
	"errors"
	"sync"

	"go-storefront-api/internal/apperr"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/repository"

	"github.com/google/uuid"
)

// Requester is the authenticated identity attached to a request.
type Requester struct {
	ID   uuid.UUID
	Role model.Role
}

func (r Requester) IsAdmin() bool {
	return r.Role == model.RoleAdmin
}

type CartService interface {
	// GetOrCreateActiveCart returns the user's in_progress cart, creating an
	// empty one when none exists. The bool reports whether a cart was created.
	GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*model.Cart, bool, error)
	GetCart(ctx context.Context, cartID uuid.UUID, requester Requester) (*model.Cart, error)
	AddProduct(ctx context.Context, cartID, productID uuid.UUID, requester Requester) (*model.Cart, error)
	RemoveProduct(ctx context.Context, cartID, productID uuid.UUID, requester Requester) (*model.Cart, error)
	SetProductQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int, requester Requester) (*model.Cart, error)
	DeleteCart(ctx context.Context, cartID uuid.UUID, requester Requester) error
	PayCart(ctx context.Context, cartID uuid.UUID, requester Requester) (*model.Cart, error)
	PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]model.Cart, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	tx          repository.TxManager
	locks       cartLocks
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, tx repository.TxManager) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		tx:          tx,
		locks:       cartLocks{m: make(map[uuid.UUID]*sync.Mutex)},
	}
}

// cartLocks serializes mutations per cart id so concurrent requests against
// the same cart never interleave between read and write.
type cartLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func (l *cartLocks) lock(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	cl, ok := l.m[id]
	if !ok {
		cl = &sync.Mutex{}
		l.m[id] = cl
	}
	l.mu.Unlock()
	cl.Lock()
	return cl
}

func (s *cartService) GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*model.Cart, bool, error) {
	cart, err := s.cartRepo.FindActiveByUser(ctx, userID)
	if err == nil {
		return cart, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	fresh := &model.Cart{UserID: userID, Status: model.CartInProgress, Items: []model.CartItem{}}
	if err := s.cartRepo.Create(ctx, fresh); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveCart) {
			// Lost the creation race; the winner's cart is the active one.
			cart, err := s.cartRepo.FindActiveByUser(ctx, userID)
			if err != nil {
				return nil, false, err
			}
			return cart, false, nil
		}
		return nil, false, err
	}
	return fresh, true, nil
}

func (s *cartService) GetCart(ctx context.Context, cartID uuid.UUID, requester Requester) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "cart not found")
		}
		return nil, err
	}
	if cart.UserID != requester.ID && !requester.IsAdmin() {
		return nil, apperr.E(apperr.KindForbidden, "not allowed to view this cart")
	}
	return cart, nil
}

// loadForMutation fetches a cart and enforces the mutation preconditions:
// the cart exists, the requester owns it (line-item mutation is owner-only,
// even for admins) and it has not been paid.
func (s *cartService) loadForMutation(ctx context.Context, cartID uuid.UUID, requester Requester) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "cart not found")
		}
		return nil, err
	}
	if cart.UserID != requester.ID {
		return nil, apperr.E(apperr.KindForbidden, "not the cart owner")
	}
	if cart.Status != model.CartInProgress {
		return nil, apperr.E(apperr.KindInvalidState, "cart has already been paid")
	}
	return cart, nil
}

func (s *cartService) AddProduct(ctx context.Context, cartID, productID uuid.UUID, requester Requester) (*model.Cart, error) {
	lock := s.locks.lock(cartID)
	defer lock.Unlock()

	cart, err := s.loadForMutation(ctx, cartID, requester)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "product not found")
		}
		return nil, err
	}

	quantity := 1
	if item := cart.Item(productID); item != nil {
		quantity = item.Quantity + 1
	}
	if quantity > product.Stock {
		return nil, apperr.E(apperr.KindStockExceeded, "quantity exceeds available stock")
	}

	line := model.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
	if err := s.cartRepo.SaveItem(ctx, &line); err != nil {
		return nil, err
	}
	return s.cartRepo.FindByID(ctx, cartID)
}

func (s *cartService) RemoveProduct(ctx context.Context, cartID, productID uuid.UUID, requester Requester) (*model.Cart, error) {
	lock := s.locks.lock(cartID)
	defer lock.Unlock()

	cart, err := s.loadForMutation(ctx, cartID, requester)
	if err != nil {
		return nil, err
	}

	if err := s.cartRepo.DeleteItem(ctx, cart.ID, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "product not in cart")
		}
		return nil, err
	}
	return s.cartRepo.FindByID(ctx, cartID)
}

func (s *cartService) SetProductQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int, requester Requester) (*model.Cart, error) {
	if quantity < 1 {
		return nil, apperr.E(apperr.KindInvalidArgument, "quantity must be a positive integer")
	}

	lock := s.locks.lock(cartID)
	defer lock.Unlock()

	cart, err := s.loadForMutation(ctx, cartID, requester)
	if err != nil {
		return nil, err
	}

	item := cart.Item(productID)
	if item == nil {
		return nil, apperr.E(apperr.KindNotFound, "product not in cart")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "product not found")
		}
		return nil, err
	}
	if quantity > product.Stock {
		return nil, apperr.E(apperr.KindStockExceeded, "quantity exceeds available stock")
	}

	line := model.CartItem{ID: item.ID, CartID: cart.ID, ProductID: productID, Quantity: quantity}
	if err := s.cartRepo.SaveItem(ctx, &line); err != nil {
		return nil, err
	}
	return s.cartRepo.FindByID(ctx, cartID)
}

func (s *cartService) DeleteCart(ctx context.Context, cartID uuid.UUID, requester Requester) error {
	lock := s.locks.lock(cartID)
	defer lock.Unlock()

	cart, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.E(apperr.KindNotFound, "cart not found")
		}
		return err
	}
	if cart.UserID != requester.ID {
		return apperr.E(apperr.KindForbidden, "not the cart owner")
	}
	if cart.Status != model.CartInProgress {
		return apperr.E(apperr.KindInvalidState, "cannot delete a paid cart")
	}
	return s.cartRepo.Delete(ctx, cartID)
}

func (s *cartService) PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]model.Cart, error) {
	return s.cartRepo.FindAllByUser(ctx, userID)
}
