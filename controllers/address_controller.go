package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

type AddressController struct {
	addressService services.AddressService
}

func NewAddressController(addressService services.AddressService) *AddressController {
	return &AddressController{addressService: addressService}
}

func (ac *AddressController) List(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	addresses, svcErr := ac.addressService.List(ctx.Request.Context(), userID)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

func (ac *AddressController) Create(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.AddressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	address, svcErr := ac.addressService.Create(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"address": address})
}

func (ac *AddressController) Update(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.AddressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	address, svcErr := ac.addressService.Update(ctx.Request.Context(), userID, ctx.Param("id"), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"address": address})
}

func (ac *AddressController) Delete(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	if svcErr := ac.addressService.Delete(ctx.Request.Context(), userID, ctx.Param("id")); svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}

func (ac *AddressController) SetDefault(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	address, svcErr := ac.addressService.SetDefault(ctx.Request.Context(), userID, ctx.Param("id"))
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"address": address})
}
