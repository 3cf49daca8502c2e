package repository

import (
	"context"
	"errors"
	"time"

	"go-storefront-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	// Create fails with ErrDuplicateActiveCart when the user already owns an
	// in_progress cart (partial unique index on carts.user_id).
	Create(ctx context.Context, cart *model.Cart) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	FindAllByUser(ctx context.Context, userID uuid.UUID) ([]model.Cart, error)
	// SaveItem inserts the line or updates its quantity (one line per product).
	SaveItem(ctx context.Context, item *model.CartItem) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
}

type cartRepo struct {
	db *gorm.DB
}

func NewCartRepo(db *gorm.DB) CartRepository {
	return &cartRepo{db}
}

func (r *cartRepo) Create(ctx context.Context, cart *model.Cart) error {
	if err := dbFrom(ctx, r.db).Create(cart).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateActiveCart
		}
		return err
	}
	return nil
}

func (r *cartRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	var cart model.Cart
	if err := dbFrom(ctx, r.db).Preload("Items").First(&cart, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	var cart model.Cart
	err := dbFrom(ctx, r.db).Preload("Items").
		Where("user_id = ? AND status = ?", userID, model.CartInProgress).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepo) FindAllByUser(ctx context.Context, userID uuid.UUID) ([]model.Cart, error) {
	var carts []model.Cart
	err := dbFrom(ctx, r.db).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&carts).Error
	return carts, err
}

func (r *cartRepo) SaveItem(ctx context.Context, item *model.CartItem) error {
	return dbFrom(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(item).Error
}

func (r *cartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	res := dbFrom(ctx, r.db).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&model.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cartRepo) Delete(ctx context.Context, id uuid.UUID) error {
	db := dbFrom(ctx, r.db)
	if err := db.Where("cart_id = ?", id).Delete(&model.CartItem{}).Error; err != nil {
		return err
	}
	res := db.Delete(&model.Cart{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cartRepo) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	return dbFrom(ctx, r.db).Model(&model.Cart{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  model.CartPaid,
			"paid_at": paidAt,
		}).Error
}
