package service

import (
	"context"
	"errors"
	"fmt"

	"go-storefront-api/internal/apperr"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/repository"
	"go-storefront-api/pkg/validator"
)

// UserService is the admin-only user management surface.
type UserService interface {
	// CreateUser creates an account with an explicit role (defaults to "user").
	CreateUser(ctx context.Context, req *CreateUserRequest) (*model.UserResponse, error)
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
}

type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=user admin"`
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest) (*model.UserResponse, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.E(apperr.KindInvalidArgument,
			fmt.Sprintf("Validation failed: Field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag))
	}

	role := model.RoleUser
	if req.Role != "" {
		role = model.Role(req.Role)
	}

	user := &model.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperr.E(apperr.KindConflict, "email already registered")
		}
		return nil, err
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserResponse, len(users))
	for i := range users {
		out[i] = users[i].ToResponse()
	}
	return out, nil
}
