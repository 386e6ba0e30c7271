package services

import (
	"context"
	"errors"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxAddressesPerUser = 20

type AddressService interface {
	List(ctx context.Context, userID primitive.ObjectID) ([]models.Address, *ServiceError)
	Create(ctx context.Context, userID primitive.ObjectID, req *models.AddressRequest) (*models.Address, *ServiceError)
	Update(ctx context.Context, userID primitive.ObjectID, id string, req *models.AddressRequest) (*models.Address, *ServiceError)
	Delete(ctx context.Context, userID primitive.ObjectID, id string) *ServiceError
	SetDefault(ctx context.Context, userID primitive.ObjectID, id string) (*models.Address, *ServiceError)
	// Resolve picks the shipping address for an order: an explicit id, an
	// inline address, or the default, in that order.
	Resolve(ctx context.Context, userID primitive.ObjectID, addressID string, inline *models.AddressRequest) (*models.ShippingAddress, *ServiceError)
}

type addressServiceImpl struct {
	repo   repository.AddressRepository
	logger *zap.Logger
}

func NewAddressService(repo repository.AddressRepository, logger *zap.Logger) AddressService {
	return &addressServiceImpl{repo: repo, logger: logger}
}

func (s *addressServiceImpl) List(ctx context.Context, userID primitive.ObjectID) ([]models.Address, *ServiceError) {
	addresses, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list addresses", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, internal("Failed to fetch addresses")
	}
	return addresses, nil
}

func (s *addressServiceImpl) Create(ctx context.Context, userID primitive.ObjectID, req *models.AddressRequest) (*models.Address, *ServiceError) {
	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to count addresses", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, internal("Failed to save address")
	}
	if count >= maxAddressesPerUser {
		return nil, badRequest("Address book is full")
	}

	a := fromRequest(req)
	a.UserID = userID
	a.IsDefault = req.IsDefault || count == 0
	if err := s.repo.Create(ctx, a); err != nil {
		s.logger.Error("Failed to create address", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, internal("Failed to save address")
	}
	if a.IsDefault && count > 0 {
		if err := s.repo.ClearDefault(ctx, userID, a.ID); err != nil {
			s.logger.Warn("Failed to clear previous default address", zap.String("user_id", userID.Hex()), zap.Error(err))
		}
	}
	return a, nil
}

func (s *addressServiceImpl) Update(ctx context.Context, userID primitive.ObjectID, id string, req *models.AddressRequest) (*models.Address, *ServiceError) {
	existing, svcErr := s.find(ctx, userID, id)
	if svcErr != nil {
		return nil, svcErr
	}

	a := fromRequest(req)
	a.ID = existing.ID
	a.UserID = userID
	a.CreatedAt = existing.CreatedAt
	// an update can promote an address but never demote the only default
	a.IsDefault = existing.IsDefault || req.IsDefault
	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Address not found")
		}
		s.logger.Error("Failed to update address", zap.String("address_id", id), zap.Error(err))
		return nil, internal("Failed to update address")
	}
	if a.IsDefault && !existing.IsDefault {
		if err := s.repo.ClearDefault(ctx, userID, a.ID); err != nil {
			s.logger.Warn("Failed to clear previous default address", zap.String("user_id", userID.Hex()), zap.Error(err))
		}
	}
	return a, nil
}

func (s *addressServiceImpl) Delete(ctx context.Context, userID primitive.ObjectID, id string) *ServiceError {
	existing, svcErr := s.find(ctx, userID, id)
	if svcErr != nil {
		return svcErr
	}
	if err := s.repo.Delete(ctx, existing.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Address not found")
		}
		s.logger.Error("Failed to delete address", zap.String("address_id", id), zap.Error(err))
		return internal("Failed to delete address")
	}
	if !existing.IsDefault {
		return nil
	}

	// promote the most recent remaining address
	rest, err := s.repo.FindByUser(ctx, userID)
	if err != nil || len(rest) == 0 {
		return nil
	}
	next := rest[0]
	next.IsDefault = true
	if err := s.repo.Update(ctx, &next); err != nil {
		s.logger.Warn("Failed to promote default address", zap.String("address_id", next.ID.Hex()), zap.Error(err))
	}
	return nil
}

func (s *addressServiceImpl) SetDefault(ctx context.Context, userID primitive.ObjectID, id string) (*models.Address, *ServiceError) {
	a, svcErr := s.find(ctx, userID, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if a.IsDefault {
		return a, nil
	}
	a.IsDefault = true
	if err := s.repo.Update(ctx, a); err != nil {
		s.logger.Error("Failed to set default address", zap.String("address_id", id), zap.Error(err))
		return nil, internal("Failed to update address")
	}
	if err := s.repo.ClearDefault(ctx, userID, a.ID); err != nil {
		s.logger.Warn("Failed to clear previous default address", zap.String("user_id", userID.Hex()), zap.Error(err))
	}
	return a, nil
}

func (s *addressServiceImpl) Resolve(ctx context.Context, userID primitive.ObjectID, addressID string, inline *models.AddressRequest) (*models.ShippingAddress, *ServiceError) {
	if addressID != "" {
		a, svcErr := s.find(ctx, userID, addressID)
		if svcErr != nil {
			return nil, svcErr
		}
		snap := a.Snapshot()
		return &snap, nil
	}
	if inline != nil {
		snap := inline.Snapshot()
		return &snap, nil
	}

	a, err := s.repo.FindDefault(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, badRequest("A shipping address is required")
		}
		s.logger.Error("Failed to load default address", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, internal("Failed to load address")
	}
	snap := a.Snapshot()
	return &snap, nil
}

func (s *addressServiceImpl) find(ctx context.Context, userID primitive.ObjectID, id string) (*models.Address, *ServiceError) {
	aid, svcErr := parseID(id, "address")
	if svcErr != nil {
		return nil, svcErr
	}
	a, err := s.repo.FindByID(ctx, aid, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Address not found")
		}
		s.logger.Error("Failed to load address", zap.String("address_id", id), zap.Error(err))
		return nil, internal("Failed to load address")
	}
	return a, nil
}

func fromRequest(req *models.AddressRequest) *models.Address {
	return &models.Address{
		FullName:   req.FullName,
		Phone:      req.Phone,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	}
}
