package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

type CartController struct {
	cartService services.CartService
}

func NewCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

func (cc *CartController) GetCart(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	cart, svcErr := cc.cartService.GetCart(ctx.Request.Context(), userID.Hex())
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cart": cart})
}

func (cc *CartController) AddItem(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.CartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	cart, svcErr := cc.cartService.AddItem(ctx.Request.Context(), userID.Hex(), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cart": cart})
}

// UpdateItem sets a line's quantity; zero removes it.
func (cc *CartController) UpdateItem(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.CartItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	cart, svcErr := cc.cartService.UpdateItem(ctx.Request.Context(), userID.Hex(), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cart": cart})
}

// RemoveItem handles DELETE /cart/items/:productId. The size, if any, is
// passed as a query parameter.
func (cc *CartController) RemoveItem(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	cart, svcErr := cc.cartService.RemoveItem(ctx.Request.Context(), userID.Hex(), ctx.Param("productId"), ctx.Query("size"))
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cart": cart})
}

func (cc *CartController) Clear(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	if svcErr := cc.cartService.Clear(ctx.Request.Context(), userID.Hex()); svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
