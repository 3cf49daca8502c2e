package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-storefront-api/internal/apperr"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/repository"

	"github.com/google/uuid"
)

// PayCart runs the checkout settlement: a validation pass over every line
// item, then, only when the whole cart validates, a commit pass of atomic
// conditional stock decrements plus the terminal status transition, all
// inside one storage transaction. A decrement losing a race to another cart
// aborts the transaction, so the commit pass is all-or-nothing.
func (s *cartService) PayCart(ctx context.Context, cartID uuid.UUID, requester Requester) (*model.Cart, error) {
	lock := s.locks.lock(cartID)
	defer lock.Unlock()

	cart, err := s.cartRepo.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "cart not found")
		}
		return nil, err
	}
	if cart.UserID != requester.ID && !requester.IsAdmin() {
		return nil, apperr.E(apperr.KindForbidden, "not allowed to pay this cart")
	}
	if cart.Status != model.CartInProgress {
		return nil, apperr.E(apperr.KindInvalidState, "cart has already been paid")
	}
	if len(cart.Items) == 0 {
		return nil, apperr.E(apperr.KindEmptyCart, "cart is empty")
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// Validation pass: no mutation until every line checks out.
		for _, item := range cart.Items {
			product, err := s.productRepo.FindByID(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.E(apperr.KindNotFound, fmt.Sprintf("product %s no longer exists", item.ProductID))
				}
				return err
			}
			if product.Stock < item.Quantity {
				return apperr.E(apperr.KindInsufficientStock, fmt.Sprintf("insufficient stock for product %s", product.Title))
			}
		}

		// Commit pass: conditional decrements guard against stock consumed
		// between validation and commit by a concurrent checkout.
		for _, item := range cart.Items {
			if err := s.productRepo.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				switch {
				case errors.Is(err, repository.ErrNotFound):
					return apperr.E(apperr.KindNotFound, fmt.Sprintf("product %s no longer exists", item.ProductID))
				case errors.Is(err, repository.ErrInsufficientStock):
					return apperr.E(apperr.KindInsufficientStock, "insufficient stock")
				default:
					return err
				}
			}
		}

		return s.cartRepo.MarkPaid(ctx, cart.ID, time.Now())
	})
	if err != nil {
		return nil, err
	}

	return s.cartRepo.FindByID(ctx, cartID)
}
