package service

import (
	"context"

	"github.com/google/uuid"

	"ridehail/internal/domain"
	"ridehail/internal/pricing"
	"ridehail/internal/repository"
)

// UserService handles account registration and lookup.
type UserService struct {
	users repository.UserRepository
	clock pricing.Clock
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, clock pricing.Clock) *UserService {
	return &UserService{users: users, clock: clock}
}

// RegisterRequest contains the parameters for creating a user.
type RegisterRequest struct {
	Name  string
	Phone string
	Role  domain.Role
}

// Register creates a user. Drivers start offline.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if req.Name == "" || req.Phone == "" {
		return nil, ErrInvalidUserDetails
	}
	if !domain.ValidRole(req.Role) {
		return nil, ErrInvalidRole
	}

	if _, err := s.users.GetByPhone(ctx, req.Phone); err == nil {
		return nil, ErrPhoneTaken
	} else if err != repository.ErrNotFound {
		return nil, err
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		Role:      req.Role,
		CreatedAt: s.clock.Now(),
	}
	if req.Role == domain.RoleDriver {
		user.DriverStatus = domain.DriverStatusOffline
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return nil, ErrUserNotFound
	}
	return user, err
}
