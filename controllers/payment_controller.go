package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/services"
	"go.uber.org/zap"
)

// Stripe caps webhook payloads well below this.
const maxWebhookBytes = 1 << 16

type PaymentController struct {
	paymentService services.PaymentService
	logger         *zap.Logger
}

func NewPaymentController(paymentService services.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{paymentService: paymentService, logger: logger}
}

// StripeWebhook handles POST /webhooks/stripe. The body is read raw so the
// signature can be checked against the exact bytes Stripe sent.
func (pc *PaymentController) StripeWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBytes))
	if err != nil {
		pc.logger.Warn("Failed to read Stripe webhook body", zap.Error(err))
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not read request body"})
		return
	}

	if svcErr := pc.paymentService.HandleWebhook(ctx.Request.Context(), payload, ctx.GetHeader("Stripe-Signature")); svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"received": true})
}
