package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/common/logger"
	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	page := ctx.DefaultQuery("page", "1")
	limit := ctx.DefaultQuery("limit", "10")

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		pageInt = p
	}

	if l, err := strconv.Atoi(limit); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}

	return pageInt, limitInt
}

func paginationMeta(page, limit int, total int64) gin.H {
	totalPages := int64(0)
	if limit > 0 {
		totalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return gin.H{
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": totalPages,
		"has_more":    total > int64(page*limit),
	}
}

func renderError(ctx *gin.Context, svcErr *services.ServiceError) {
	if svcErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(ctx).Warn("Request failed",
			zap.String("path", ctx.FullPath()),
			zap.Int("status", svcErr.StatusCode),
			zap.String("error", svcErr.Message),
		)
	}
	ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
}

func renderBindError(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": bindErrorDetails(err)})
}

// requireUserID reads the authenticated user id, writing a 401 when absent.
func requireUserID(ctx *gin.Context) (primitive.ObjectID, bool) {
	id, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return primitive.NilObjectID, false
	}
	return id, true
}
