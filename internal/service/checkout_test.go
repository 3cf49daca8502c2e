package service

import (
	"context"
	"sync"
	"testing"

	"go-storefront-api/internal/apperr"
	"go-storefront-api/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func TestPayCart_Success(t *testing.T) {
	// Scenario: cart {P1: 3}, stock 5 -> stock 2, status paid, paid_at set.
	// A second pay on the same cart must fail.
	ctx := context.Background()
	svc, store := setupCart(t)
	owner := Requester{ID: uuid.New(), Role: model.RoleUser}
	cart := activeCart(t, svc, owner.ID)
	p := seedProduct(t, store, "P1", 5)

	if _, err := svc.AddProduct(ctx, cart.ID, p.ID, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetProductQuantity(ctx, cart.ID, p.ID, 3, owner); err != nil {
		t.Fatal(err)
	}

	paid, err := svc.PayCart(ctx, cart.ID, owner)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != model.CartPaid {
		t.Fatalf("status %q", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Fatalf("paid_at not set")
	}

	after, _ := store.FindByID(ctx, p.ID)
	if after.Stock != 2 {
		t.Fatalf("stock expected 2, got %d", after.Stock)
	}

	_, err = svc.PayCart(ctx, cart.ID, owner)
	wantKind(t, err, apperr.KindInvalidState)
}

func TestPayCart_InsufficientStockIsAllOrNothing(t *testing.T) {
	// Scenario: cart {P1: 2, P2: 1}; P2 stock drops to 0 before pay. Neither
	// product's stock changes and the cart stays in_progress.
	ctx := context.Background()
	svc, store := setupCart(t)
	owner := Requester{ID: uuid.New(), Role: model.RoleUser}
	cart := activeCart(t, svc, owner.ID)
	p1 := seedProduct(t, store, "P1", 5)
	p2 := seedProduct(t, store, "P2", 1)

	if _, err := svc.AddProduct(ctx, cart.ID, p1.ID, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetProductQuantity(ctx, cart.ID, p1.ID, 2, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddProduct(ctx, cart.ID, p2.ID, owner); err != nil {
		t.Fatal(err)
	}

	// another cart consumed P2 in the meantime
	if err := store.DecrementStock(ctx, p2.ID, 1); err != nil {
		t.Fatal(err)
	}

	_, err := svc.PayCart(ctx, cart.ID, owner)
	wantKind(t, err, apperr.KindInsufficientStock)

	a1, _ := store.FindByID(ctx, p1.ID)
	a2, _ := store.FindByID(ctx, p2.ID)
	if a1.Stock != 5 || a2.Stock != 0 {
		t.Fatalf("stock changed: P1=%d P2=%d", a1.Stock, a2.Stock)
	}
	got, _ := svc.GetCart(ctx, cart.ID, owner)
	if got == nil {
		t.Fatalf("cart gone")
	}
	history, _ := svc.PurchaseHistory(ctx, owner.ID)
	if history[0].Status != model.CartInProgress {
		t.Fatalf("cart status %q", history[0].Status)
	}
}

func TestPayCart_VanishedProduct(t *testing.T) {
	ctx := context.Background()
	svc, store := setupCart(t)
	owner := Requester{ID: uuid.New(), Role: model.RoleUser}
	cart := activeCart(t, svc, owner.ID)
	p1 := seedProduct(t, store, "P1", 5)
	p2 := seedProduct(t, store, "P2", 5)

	if _, err := svc.AddProduct(ctx, cart.ID, p1.ID, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddProduct(ctx, cart.ID, p2.ID, owner); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, p2.ID); err != nil {
		t.Fatal(err)
	}

	_, err := svc.PayCart(ctx, cart.ID, owner)
	wantKind(t, err, apperr.KindNotFound)

	a1, _ := store.FindByID(ctx, p1.ID)
	if a1.Stock != 5 {
		t.Fatalf("P1 stock changed: %d", a1.Stock)
	}
}

func TestPayCart_EmptyCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupCart(t)
	owner := Requester{ID: uuid.New(), Role: model.RoleUser}
	cart := activeCart(t, svc, owner.ID)

	_, err := svc.PayCart(ctx, cart.ID, owner)
	wantKind(t, err, apperr.KindEmptyCart)
}

func TestPayCart_AdminOverride(t *testing.T) {
	// Admins may pay any cart even though they may not mutate its lines.
	ctx := context.Background()
	svc, store := setupCart(t)
	owner := Requester{ID: uuid.New(), Role: model.RoleUser}
	admin := Requester{ID: uuid.New(), Role: model.RoleAdmin}
	stranger := Requester{ID: uuid.New(), Role: model.RoleUser}
	cart := activeCart(t, svc, owner.ID)
	p := seedProduct(t, store, "P1", 5)

	if _, err := svc.AddProduct(ctx, cart.ID, p.ID, owner); err != nil {
		t.Fatal(err)
	}

	_, err := svc.PayCart(ctx, cart.ID, stranger)
	wantKind(t, err, apperr.KindForbidden)

	if _, err := svc.PayCart(ctx, cart.ID, admin); err != nil {
		t.Fatalf("admin pay: %v", err)
	}
}

func TestPayCart_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	// Two carts race for the last unit: exactly one settles, stock ends at 0.
	ctx := context.Background()
	svc, store := setupCart(t)
	p := seedProduct(t, store, "P1", 1)

	ownerA := Requester{ID: uuid.New(), Role: model.RoleUser}
	ownerB := Requester{ID: uuid.New(), Role: model.RoleUser}
	cartA := activeCart(t, svc, ownerA.ID)
	cartB := activeCart(t, svc, ownerB.ID)
	if _, err := svc.AddProduct(ctx, cartA.ID, p.ID, ownerA); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddProduct(ctx, cartB.ID, p.ID, ownerB); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var failures []error
	var wg sync.WaitGroup
	pay := func(cartID uuid.UUID, req Requester) {
		defer wg.Done()
		if _, err := svc.PayCart(ctx, cartID, req); err != nil {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		}
	}
	wg.Add(2)
	go pay(cartA.ID, ownerA)
	go pay(cartB.ID, ownerB)
	wg.Wait()

	if len(failures) != 1 {
		t.Fatalf("expected exactly 1 failed checkout, got %d: %v", len(failures), failures)
	}
	wantKind(t, failures[0], apperr.KindInsufficientStock)

	after, _ := store.FindByID(ctx, p.ID)
	if after.Stock != 0 {
		t.Fatalf("stock expected 0, got %d", after.Stock)
	}
}

func TestGetOrCreateActiveCart_ConcurrentSingleCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupCart(t)
	userID := uuid.New()

	const n = 50
	ids := make(map[uuid.UUID]struct{})
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			cart, _, err := svc.GetOrCreateActiveCart(gctx, userID)
			if err != nil {
				return err
			}
			mu.Lock()
			ids[cart.ID] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent get-or-create failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected exactly 1 active cart id, got %d", len(ids))
	}
}
