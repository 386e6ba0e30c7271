package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

type UserController struct {
	userService services.UserService
}

func NewUserController(userService services.UserService) *UserController {
	return &UserController{userService: userService}
}

// Me handles GET /user/me.
func (uc *UserController) Me(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	user, svcErr := uc.userService.GetProfile(ctx.Request.Context(), userID)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe handles PUT /user/me.
func (uc *UserController) UpdateMe(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	user, svcErr := uc.userService.UpdateProfile(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

// ListUsers handles GET /admin/users.
func (uc *UserController) ListUsers(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	users, total, svcErr := uc.userService.ListUsers(ctx.Request.Context(), page, limit)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"users": users,
		"meta":  paginationMeta(page, limit, total),
	})
}

// UpdateRole handles PATCH /admin/users/:id/role.
func (uc *UserController) UpdateRole(ctx *gin.Context) {
	actorID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.UpdateRoleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	user, svcErr := uc.userService.UpdateRole(ctx.Request.Context(), actorID, ctx.Param("id"), req.Role)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": user})
}
