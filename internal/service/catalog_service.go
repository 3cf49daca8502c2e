package service

import (
	"context"
	"errors"
	"fmt"

	"go-storefront-api/internal/apperr"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/repository"
	"go-storefront-api/pkg/validator"

	"github.com/google/uuid"
)

type CatalogService interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	CreateProduct(ctx context.Context, product *model.Product) error
	UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// UpdateProductRequest carries a partial update; nil fields are left alone.
// The product id is immutable.
type UpdateProductRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Code        *string   `json:"code"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0"`
	Status      *bool     `json:"status"`
	Stock       *int      `json:"stock" validate:"omitempty,gte=0"`
	Category    *string   `json:"category"`
	Thumbnails  *[]string `json:"thumbnails"`
}

type catalogService struct {
	productRepo repository.ProductRepository
}

func NewCatalogService(productRepo repository.ProductRepository) CatalogService {
	return &catalogService{productRepo: productRepo}
}

func (s *catalogService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.FindAll(ctx)
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "product not found")
		}
		return nil, err
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, product *model.Product) error {
	if errs := validator.ValidateStruct(product); len(errs) > 0 {
		firstErr := errs[0]
		return apperr.E(apperr.KindInvalidArgument,
			fmt.Sprintf("Validation failed: Field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag))
	}

	existing, err := s.productRepo.FindByCode(ctx, product.Code)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing != nil {
		return apperr.E(apperr.KindConflict, "product code already exists")
	}

	return s.productRepo.Create(ctx, product)
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest) (*model.Product, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.E(apperr.KindInvalidArgument,
			fmt.Sprintf("Validation failed: Field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag))
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "product not found")
		}
		return nil, err
	}

	if req.Code != nil && *req.Code != product.Code {
		other, err := s.productRepo.FindByCode(ctx, *req.Code)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if other != nil {
			return nil, apperr.E(apperr.KindConflict, "product code already exists")
		}
		product.Code = *req.Code
	}
	if req.Title != nil {
		product.Title = *req.Title
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Status != nil {
		product.Status = *req.Status
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Thumbnails != nil {
		product.Thumbnails = *req.Thumbnails
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.E(apperr.KindNotFound, "product not found")
		}
		return err
	}
	return nil
}
