package repository

import (
	"context"
	"errors"

	"go-storefront-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByCode(ctx context.Context, code string) (*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DecrementStock atomically decrements stock only when enough remains.
	// Returns ErrInsufficientStock when the guard fails and ErrNotFound when
	// the product no longer exists.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return dbFrom(ctx, r.db).Create(product).Error
}

func (r *productRepo) FindAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := dbFrom(ctx, r.db).Order("created_at ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := dbFrom(ctx, r.db).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindByCode(ctx context.Context, code string) (*model.Product, error) {
	var product model.Product
	if err := dbFrom(ctx, r.db).First(&product, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	return dbFrom(ctx, r.db).Save(product).Error
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := dbFrom(ctx, r.db).Delete(&model.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	db := dbFrom(ctx, r.db)
	res := db.Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the product vanished or the stock guard failed.
		var count int64
		if err := db.Model(&model.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}
