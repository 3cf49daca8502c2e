package service

import (
	"context"
	"errors"
	"fmt"

	"go-storefront-api/internal/apperr"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/repository"
	"go-storefront-api/pkg/jwt"
	"go-storefront-api/pkg/validator"
)

type AuthService interface {
	// Register creates a user account. Registration is open and always
	// produces role "user". Elevation happens only through the admin surface.
	Register(ctx context.Context, req *RegisterRequest) (*model.UserResponse, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
}

func NewAuthService(userRepo repository.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*model.UserResponse, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, apperr.E(apperr.KindInvalidArgument,
			fmt.Sprintf("Validation failed: Field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag))
	}

	user := &model.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      model.RoleUser,
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

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.KindUnauthorized, "invalid email or password")
		}
		return nil, err
	}

	if !user.CheckPassword(password) {
		return nil, apperr.E(apperr.KindUnauthorized, "invalid email or password")
	}

	token, err := jwt.GenerateToken(user.ID, user.Email, user.FullName(), string(user.Role))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{Token: token, User: user.ToResponse()}, nil
}
