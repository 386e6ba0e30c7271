package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/middleware"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

type OrderController struct {
	orderService   services.OrderService
	paymentService services.PaymentService
}

func NewOrderController(orderService services.OrderService, paymentService services.PaymentService) *OrderController {
	return &OrderController{orderService: orderService, paymentService: paymentService}
}

// PlaceOrder handles POST /user/orders. Online orders answer with the
// Stripe checkout URL the client must redirect to.
func (oc *OrderController) PlaceOrder(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.PlaceOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	resp, svcErr := oc.orderService.PlaceOrder(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// MyOrders handles GET /user/orders.
func (oc *OrderController) MyOrders(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(ctx)
	orders, total, svcErr := oc.orderService.MyOrders(ctx.Request.Context(), userID, page, limit)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"meta":   paginationMeta(page, limit, total),
	})
}

// GetOrder handles GET /user/orders/:id and GET /admin/orders/:id.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	order, svcErr := oc.orderService.GetOrder(ctx.Request.Context(), userID, middleware.IsAdmin(ctx), ctx.Param("id"))
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// TrackOrder handles GET /user/orders/track/:trackingId.
func (oc *OrderController) TrackOrder(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	order, svcErr := oc.orderService.TrackOrder(ctx.Request.Context(), userID, middleware.IsAdmin(ctx), ctx.Param("trackingId"))
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder handles POST /user/orders/:id/cancel. The body is optional.
func (oc *OrderController) CancelOrder(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	var req models.CancelOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		renderBindError(ctx, err)
		return
	}
	order, svcErr := oc.orderService.CancelOrder(ctx.Request.Context(), userID, ctx.Param("id"), req.Reason)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// VerifyPayment handles POST /user/orders/:id/verify-payment, called when
// the shopper lands back from Stripe checkout.
func (oc *OrderController) VerifyPayment(ctx *gin.Context) {
	userID, ok := requireUserID(ctx)
	if !ok {
		return
	}
	order, svcErr := oc.paymentService.VerifyPayment(ctx.Request.Context(), userID, ctx.Param("id"))
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"order":   order,
		"success": order.PaymentStatus == models.PaymentStatusPaid,
	})
}

// ListOrders handles GET /admin/orders.
func (oc *OrderController) ListOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	filter := models.OrderFilter{
		Status:        models.OrderStatus(ctx.Query("status")),
		PaymentStatus: models.PaymentStatus(ctx.Query("payment_status")),
		Page:          page,
		Limit:         limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	orders, total, svcErr := oc.orderService.ListOrders(ctx.Request.Context(), filter)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"meta":   paginationMeta(page, limit, total),
	})
}

// UpdateStatus handles PATCH /admin/orders/:id/status.
func (oc *OrderController) UpdateStatus(ctx *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	order, svcErr := oc.orderService.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// Stats handles GET /admin/stats.
func (oc *OrderController) Stats(ctx *gin.Context) {
	stats, svcErr := oc.orderService.Stats(ctx.Request.Context())
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"stats": stats})
}
