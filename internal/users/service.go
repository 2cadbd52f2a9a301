// Package users exposes account reads and admin role management.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service serves profile reads and admin account management.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	ListUsers(ctx context.Context, params pagination.Params) (pagination.Page[UserDTO], error)
	SetRole(ctx context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*UserDTO, error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.UserRole) error
	List(ctx context.Context, params pagination.Params) (pagination.Page[models.User], error)
}

type service struct {
	repo userStore
	logg *logger.Logger
}

// NewService builds the users service.
func NewService(repo userStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapUserError(err)
	}
	return FromModel(user), nil
}

func (s *service) ListUsers(ctx context.Context, params pagination.Params) (pagination.Page[UserDTO], error) {
	page, err := s.repo.List(ctx, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return pagination.Page[UserDTO]{}, err
		}
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return pagination.Map(page, toDTO), nil
}

// SetRole changes another account's role. Admins cannot demote themselves.
func (s *service) SetRole(ctx context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*UserDTO, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role").WithDetails(map[string]any{"role": role})
	}
	if actorID == userID && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "admins cannot demote themselves")
	}
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return nil, mapUserError(err)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"target_user_id": userID.String(), "role": string(role)})
	s.logg.Info(s.logg.WithUserID(ctx, actorID.String()), "user role changed")
	return s.GetProfile(ctx, userID)
}

func mapUserError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}
