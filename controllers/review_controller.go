package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

type ReviewController struct {
	reviewService services.ReviewService
}

func NewReviewController(reviewService services.ReviewService) *ReviewController {
	return &ReviewController{reviewService: reviewService}
}

// Create handles POST /reviews.
func (rc *ReviewController) Create(ctx *gin.Context) {
	user, err := middleware.GetUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var req models.CreateReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	review, svcErr := rc.reviewService.Create(ctx.Request.Context(), user, &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"review": review})
}

// ListByProduct handles GET /reviews/product/:productId.
func (rc *ReviewController) ListByProduct(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	reviews, total, svcErr := rc.reviewService.ListByProduct(ctx.Request.Context(), ctx.Param("productId"), page, limit)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"meta":    paginationMeta(page, limit, total),
	})
}

// Delete handles DELETE /reviews/:id.
func (rc *ReviewController) Delete(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	if svcErr := rc.reviewService.Delete(ctx.Request.Context(), userID, middleware.IsAdmin(ctx), ctx.Param("id")); svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
}
