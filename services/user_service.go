package services

import (
	"context"
	"errors"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Identity is what a verified session token says about the caller.
type Identity struct {
	ClerkID   string
	Email     string
	Name      string
	AvatarURL string
	Role      string
}

type UserService interface {
	// EnsureUser returns the local user for a verified identity, creating
	// it on first sight.
	EnsureUser(ctx context.Context, id Identity) (*models.User, error)
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, *ServiceError)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, req *models.UpdateProfileRequest) (*models.User, *ServiceError)
	ListUsers(ctx context.Context, page, limit int) ([]models.User, int64, *ServiceError)
	UpdateRole(ctx context.Context, actorID primitive.ObjectID, targetID string, role string) (*models.User, *ServiceError)
}

type userServiceImpl struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, logger *zap.Logger) UserService {
	return &userServiceImpl{repo: repo, logger: logger}
}

func (s *userServiceImpl) EnsureUser(ctx context.Context, id Identity) (*models.User, error) {
	user, err := s.repo.FindOrCreate(ctx, &models.User{
		ClerkID:   id.ClerkID,
		Email:     id.Email,
		Name:      id.Name,
		AvatarURL: id.AvatarURL,
		Role:      models.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	// an admin role granted in Clerk metadata promotes the stored user
	if id.Role == models.RoleAdmin && user.Role != models.RoleAdmin {
		promoted, err := s.repo.Update(ctx, user.ID, bson.M{"role": models.RoleAdmin})
		if err != nil {
			return nil, err
		}
		s.logger.Info("User promoted from identity claim", zap.String("user_id", user.ID.Hex()))
		user = promoted
	}
	return user, nil
}

func (s *userServiceImpl) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, *ServiceError) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("User not found")
		}
		s.logger.Error("Failed to fetch user", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, internal("Failed to fetch user")
	}
	return user, nil
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, userID primitive.ObjectID, req *models.UpdateProfileRequest) (*models.User, *ServiceError) {
	updates := bson.M{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if len(updates) == 0 {
		return nil, badRequest("No update fields provided")
	}

	user, err := s.repo.Update(ctx, userID, updates)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("User not found")
		}
		s.logger.Error("Failed to update user", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, internal("Failed to update profile")
	}
	return user, nil
}

func (s *userServiceImpl) ListUsers(ctx context.Context, page, limit int) ([]models.User, int64, *ServiceError) {
	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list users", zap.Error(err))
		return nil, 0, internal("Failed to fetch users")
	}
	return users, total, nil
}

func (s *userServiceImpl) UpdateRole(ctx context.Context, actorID primitive.ObjectID, targetID string, role string) (*models.User, *ServiceError) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, badRequest("Invalid role")
	}
	tid, svcErr := parseID(targetID, "user")
	if svcErr != nil {
		return nil, svcErr
	}
	if tid == actorID {
		return nil, forbidden("You cannot change your own role")
	}

	user, err := s.repo.Update(ctx, tid, bson.M{"role": role})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("User not found")
		}
		s.logger.Error("Failed to update role", zap.String("user_id", targetID), zap.Error(err))
		return nil, internal("Failed to update role")
	}
	s.logger.Info("User role changed",
		zap.String("user_id", targetID),
		zap.String("role", role),
		zap.String("changed_by", actorID.Hex()),
	)
	return user, nil
}
