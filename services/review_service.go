package services

import (
	"context"
	"errors"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ReviewService interface {
	Create(ctx context.Context, user *models.User, req *models.CreateReviewRequest) (*models.Review, *ServiceError)
	ListByProduct(ctx context.Context, productID string, page, limit int) ([]models.Review, int64, *ServiceError)
	Delete(ctx context.Context, userID primitive.ObjectID, isAdmin bool, id string) *ServiceError
}

type reviewServiceImpl struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	cache    *ProductCache
	logger   *zap.Logger
}

func NewReviewService(reviews repository.ReviewRepository, products repository.ProductRepository, cache *ProductCache, logger *zap.Logger) ReviewService {
	return &reviewServiceImpl{reviews: reviews, products: products, cache: cache, logger: logger}
}

func (s *reviewServiceImpl) Create(ctx context.Context, user *models.User, req *models.CreateReviewRequest) (*models.Review, *ServiceError) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, badRequest("Rating must be between 1 and 5")
	}
	pid, svcErr := parseID(req.ProductID, "product")
	if svcErr != nil {
		return nil, svcErr
	}
	if _, err := s.products.FindByID(ctx, pid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Product not found")
		}
		s.logger.Error("Failed to load product for review", zap.String("product_id", req.ProductID), zap.Error(err))
		return nil, internal("Failed to save review")
	}

	review := &models.Review{
		ProductID: pid,
		UserID:    user.ID,
		UserName:  user.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("You have already reviewed this product")
		}
		s.logger.Error("Failed to create review", zap.String("product_id", req.ProductID), zap.Error(err))
		return nil, internal("Failed to save review")
	}

	s.refreshRating(ctx, pid)
	return review, nil
}

func (s *reviewServiceImpl) ListByProduct(ctx context.Context, productID string, page, limit int) ([]models.Review, int64, *ServiceError) {
	pid, svcErr := parseID(productID, "product")
	if svcErr != nil {
		return nil, 0, svcErr
	}
	reviews, total, err := s.reviews.ListByProduct(ctx, pid, page, limit)
	if err != nil {
		s.logger.Error("Failed to list reviews", zap.String("product_id", productID), zap.Error(err))
		return nil, 0, internal("Failed to fetch reviews")
	}
	return reviews, total, nil
}

func (s *reviewServiceImpl) Delete(ctx context.Context, userID primitive.ObjectID, isAdmin bool, id string) *ServiceError {
	rid, svcErr := parseID(id, "review")
	if svcErr != nil {
		return svcErr
	}
	review, err := s.reviews.FindByID(ctx, rid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Review not found")
		}
		s.logger.Error("Failed to load review", zap.String("review_id", id), zap.Error(err))
		return internal("Failed to delete review")
	}
	if !isAdmin && review.UserID != userID {
		return forbidden("You can only delete your own reviews")
	}

	if err := s.reviews.Delete(ctx, rid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Review not found")
		}
		s.logger.Error("Failed to delete review", zap.String("review_id", id), zap.Error(err))
		return internal("Failed to delete review")
	}
	s.refreshRating(ctx, review.ProductID)
	return nil
}

// refreshRating rewrites the product's denormalised rating. A failure only
// leaves the average stale until the next review write.
func (s *reviewServiceImpl) refreshRating(ctx context.Context, productID primitive.ObjectID) {
	summary, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		s.logger.Warn("Failed to summarise ratings", zap.String("product_id", productID.Hex()), zap.Error(err))
		return
	}
	if err := s.products.SetRating(ctx, productID, summary); err != nil {
		s.logger.Warn("Failed to store rating", zap.String("product_id", productID.Hex()), zap.Error(err))
		return
	}
	s.cache.Invalidate(ctx, productID.Hex())
}
