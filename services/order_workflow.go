package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// OrderDeps bundles what the order and payment services share.
type OrderDeps struct {
	Orders    repository.OrderRepository
	Payments  repository.PaymentRepository
	Products  repository.ProductRepository
	Users     repository.UserRepository
	Stock     repository.InventoryRepository
	Inventory InventoryService
	Addresses AddressService
	Carts     CartService
	Gateway   CheckoutGateway
	Tx        repository.Transactor
	Events    *OrderEvents
	Pricing   Pricing
	Logger    *zap.Logger
}

// orderWorkflow holds the state changes reachable from more than one entry
// point: user cancel, admin cancel, webhook and client-side verification.
type orderWorkflow struct {
	OrderDeps
}

var cancellable = []models.OrderStatus{models.OrderStatusPlaced, models.OrderStatusProcessing}

// cancel moves a placed or processing order to cancelled. A paid online
// order is refunded after the status change; stock goes back only if this
// order took it.
func (w *orderWorkflow) cancel(ctx context.Context, order *models.Order, reason string) (*models.Order, *ServiceError) {
	unpaidOnline := order.PaymentMethod == models.PaymentMethodOnline && order.PaymentStatus != models.PaymentStatusPaid
	if unpaidOnline && order.StripeSessionID != "" {
		// closes the hosted page so the buyer cannot pay for a cancelled order
		if err := w.Gateway.ExpireCheckoutSession(ctx, order.StripeSessionID); err != nil {
			w.Logger.Warn("Failed to expire checkout session",
				zap.String("order_id", order.ID.Hex()),
				zap.String("session_id", order.StripeSessionID),
				zap.Error(err),
			)
		}
	}

	now := time.Now().UTC()
	updates := bson.M{
		"status":        models.OrderStatusCancelled,
		"cancel_reason": reason,
		"cancelled_at":  now,
	}
	if order.PaymentStatus == models.PaymentStatusPending {
		updates["payment_status"] = models.PaymentStatusFailed
	}
	updated, err := w.Orders.UpdateIfStatus(ctx, order.ID, cancellable, updates)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflict("Order can no longer be cancelled")
		}
		w.Logger.Error("Failed to cancel order", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		return nil, internal("Failed to cancel order")
	}

	switch updated.PaymentStatus {
	case models.PaymentStatusPaid:
		if w.refundOrder(ctx, updated) {
			updated.PaymentStatus = models.PaymentStatusRefunded
		}
	case models.PaymentStatusFailed:
		w.updatePayment(ctx, updated, bson.M{"status": models.PaymentStatusFailed, "failure_reason": reason})
	}

	w.releaseStock(ctx, updated)
	w.Logger.Info("Order cancelled",
		zap.String("order_id", updated.ID.Hex()),
		zap.String("tracking_id", updated.TrackingID),
		zap.String("reason", reason),
	)
	w.Events.Publish(models.EventOrderCancelled, updated)
	return updated, nil
}

// refundOrder refunds the captured payment of order and records it. A
// failed refund leaves the payment marked paid on a cancelled order for
// manual follow-up.
func (w *orderWorkflow) refundOrder(ctx context.Context, order *models.Order) bool {
	payment, err := w.Payments.FindByOrderID(ctx, order.ID)
	if err != nil || payment.StripePaymentIntentID == "" {
		w.Logger.Error("CRITICAL: paid order has no payment intent to refund",
			zap.String("order_id", order.ID.Hex()),
			zap.Error(err),
		)
		return false
	}
	return w.refundIntent(ctx, order, payment.StripePaymentIntentID)
}

func (w *orderWorkflow) refundIntent(ctx context.Context, order *models.Order, paymentIntentID string) bool {
	if err := w.Gateway.Refund(ctx, paymentIntentID); err != nil {
		w.Logger.Error("CRITICAL: refund failed, needs manual review",
			zap.String("order_id", order.ID.Hex()),
			zap.String("payment_intent_id", paymentIntentID),
			zap.Error(err),
		)
		return false
	}
	if err := w.Orders.Update(ctx, order.ID, bson.M{"payment_status": models.PaymentStatusRefunded}); err != nil {
		w.Logger.Error("Failed to mark order refunded", zap.String("order_id", order.ID.Hex()), zap.Error(err))
	}
	w.updatePayment(ctx, order, bson.M{
		"status":                   models.PaymentStatusRefunded,
		"stripe_payment_intent_id": paymentIntentID,
	})
	return true
}

// releaseStock returns an order's lines to inventory if the order holds
// them. The flag flip makes concurrent releases restore once.
func (w *orderWorkflow) releaseStock(ctx context.Context, order *models.Order) {
	if !order.StockDeducted {
		return
	}
	released, err := w.Orders.SetStockDeducted(ctx, order.ID, false)
	if err != nil {
		w.Logger.Error("Failed to release stock claim", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		return
	}
	if !released {
		return
	}
	order.StockDeducted = false
	if err := w.Inventory.Restore(ctx, order.StockLines()); err != nil {
		w.Logger.Error("CRITICAL: stock restore incomplete", zap.String("order_id", order.ID.Hex()), zap.Error(err))
	}
}

func (w *orderWorkflow) updatePayment(ctx context.Context, order *models.Order, updates bson.M) {
	updates["updated_at"] = time.Now().UTC()
	if err := w.Payments.UpdateByOrderID(ctx, order.ID, updates); err != nil {
		w.Logger.Error("Failed to update payment record",
			zap.String("order_id", order.ID.Hex()),
			zap.Any("updates", updates),
			zap.Error(err),
		)
	}
}

// completeCheckout applies a paid checkout session to its order: take the
// stock, then mark order and payment paid in one transaction. A 5xx leaves
// the order unpaid so the caller can retry; a stock claim made here is kept
// and the retry skips the deduction.
func (w *orderWorkflow) completeCheckout(ctx context.Context, order *models.Order, sess *models.CheckoutSession) *ServiceError {
	log := w.Logger.With(zap.String("order_id", order.ID.Hex()), zap.String("session_id", sess.ID))

	if order.PaymentStatus == models.PaymentStatusPaid || order.PaymentStatus == models.PaymentStatusRefunded {
		log.Info("Checkout already applied")
		return nil
	}
	if order.Status == models.OrderStatusCancelled {
		log.Warn("Payment received for cancelled order, refunding")
		if sess.PaymentIntentID != "" {
			w.refundIntent(ctx, order, sess.PaymentIntentID)
		}
		return nil
	}

	claimed, err := w.Orders.SetStockDeducted(ctx, order.ID, true)
	if err != nil {
		log.Error("Failed to claim stock deduction", zap.Error(err))
		return internal("Failed to update order")
	}
	if claimed {
		order.StockDeducted = true
		if svcErr := w.Inventory.Deduct(ctx, order.StockLines()); svcErr != nil {
			if _, err := w.Orders.SetStockDeducted(ctx, order.ID, false); err != nil {
				log.Error("Failed to drop stock claim", zap.Error(err))
			}
			order.StockDeducted = false
			if svcErr.StatusCode != http.StatusConflict {
				return svcErr
			}
			w.Events.recordMetric(aws_pkg.MetricStockShortfall)
			return w.rejectPaidOrder(ctx, order, sess, svcErr.Message)
		}
	}

	now := time.Now().UTC()
	err = w.Tx.WithTransaction(ctx, func(tctx context.Context) error {
		if _, err := w.Orders.UpdateIfStatus(tctx, order.ID, []models.OrderStatus{models.OrderStatusPlaced}, bson.M{
			"payment_status":    models.PaymentStatusPaid,
			"status":            models.OrderStatusProcessing,
			"stripe_session_id": sess.ID,
		}); err != nil {
			return err
		}
		return w.Payments.UpdateByOrderID(tctx, order.ID, bson.M{
			"status":                   models.PaymentStatusPaid,
			"stripe_session_id":        sess.ID,
			"stripe_payment_intent_id": sess.PaymentIntentID,
			"paid_at":                  now,
			"updated_at":               now,
		})
	})
	if err != nil {
		return w.recoverCheckout(ctx, order, sess, err, log)
	}

	order.PaymentStatus = models.PaymentStatusPaid
	order.Status = models.OrderStatusProcessing
	order.StripeSessionID = sess.ID
	if svcErr := w.Carts.Clear(ctx, order.UserID.Hex()); svcErr != nil {
		log.Warn("Failed to clear cart after payment", zap.String("error", svcErr.Message))
	}
	log.Info("Order paid", zap.String("tracking_id", order.TrackingID))
	w.Events.Publish(models.EventOrderPaid, order)
	return nil
}

// recoverCheckout decides what a failed payment transaction leaves behind.
// Another delivery of the same session may have committed first, or the
// order may have been cancelled while the stock was being taken. The stock
// claim is never dropped while the order could still become paid: the path
// that committed relied on it.
func (w *orderWorkflow) recoverCheckout(ctx context.Context, order *models.Order, sess *models.CheckoutSession, txErr error, log *zap.Logger) *ServiceError {
	current, err := w.Orders.FindByID(ctx, order.ID)
	if err != nil {
		log.Error("Failed to record payment", zap.Error(txErr), zap.NamedError("reload_error", err))
		return internal("Failed to record payment")
	}

	switch {
	case current.PaymentStatus == models.PaymentStatusPaid:
		if !current.StockDeducted {
			if _, err := w.Orders.SetStockDeducted(ctx, order.ID, true); err != nil {
				log.Error("Failed to restore stock claim on paid order", zap.Error(err))
			}
		}
		log.Info("Checkout applied by a concurrent delivery")
		return nil

	case current.Status == models.OrderStatusCancelled:
		log.Warn("Order cancelled while payment was recorded, refunding")
		w.releaseStock(ctx, current)
		if sess.PaymentIntentID != "" && current.PaymentStatus != models.PaymentStatusRefunded {
			w.refundIntent(ctx, current, sess.PaymentIntentID)
		}
		return nil

	default:
		log.Error("Failed to record payment", zap.Error(txErr))
		return internal("Failed to record payment")
	}
}

// rejectPaidOrder cancels an order that was paid for but can no longer be
// filled and refunds the buyer.
func (w *orderWorkflow) rejectPaidOrder(ctx context.Context, order *models.Order, sess *models.CheckoutSession, reason string) *ServiceError {
	paymentStatus := models.PaymentStatusFailed
	if sess.PaymentIntentID != "" {
		if err := w.Gateway.Refund(ctx, sess.PaymentIntentID); err != nil {
			w.Logger.Error("CRITICAL: refund for unfillable order failed, needs manual review",
				zap.String("order_id", order.ID.Hex()),
				zap.String("payment_intent_id", sess.PaymentIntentID),
				zap.Error(err),
			)
		} else {
			paymentStatus = models.PaymentStatusRefunded
		}
	}

	updated, err := w.Orders.UpdateIfStatus(ctx, order.ID, cancellable, bson.M{
		"status":         models.OrderStatusCancelled,
		"payment_status": paymentStatus,
		"cancel_reason":  reason,
		"cancelled_at":   time.Now().UTC(),
	})
	if err != nil {
		w.Logger.Error("Failed to cancel unfillable order", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		updated = order
	}
	w.updatePayment(ctx, order, bson.M{
		"status":                   paymentStatus,
		"stripe_session_id":        sess.ID,
		"stripe_payment_intent_id": sess.PaymentIntentID,
		"failure_reason":           reason,
	})
	w.Logger.Warn("Paid order cancelled for lack of stock",
		zap.String("order_id", order.ID.Hex()),
		zap.String("payment_status", string(paymentStatus)),
	)
	w.Events.Publish(models.EventOrderCancelled, updated)
	return nil
}

// failCheckout cancels an unpaid online order after a failed or abandoned
// checkout.
func (w *orderWorkflow) failCheckout(ctx context.Context, order *models.Order, reason string, expireSession bool) *ServiceError {
	if order.PaymentStatus == models.PaymentStatusPaid || order.Status == models.OrderStatusCancelled {
		return nil
	}

	updated, err := w.Orders.UpdateIfStatus(ctx, order.ID, []models.OrderStatus{models.OrderStatusPlaced}, bson.M{
		"status":         models.OrderStatusCancelled,
		"payment_status": models.PaymentStatusFailed,
		"cancel_reason":  reason,
		"cancelled_at":   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		w.Logger.Error("Failed to cancel order after payment failure", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		return internal("Failed to update order")
	}

	w.updatePayment(ctx, updated, bson.M{"status": models.PaymentStatusFailed, "failure_reason": reason})
	w.releaseStock(ctx, updated)
	if expireSession && updated.StripeSessionID != "" {
		if err := w.Gateway.ExpireCheckoutSession(ctx, updated.StripeSessionID); err != nil {
			w.Logger.Warn("Failed to expire checkout session", zap.String("session_id", updated.StripeSessionID), zap.Error(err))
		}
	}

	w.Logger.Info("Order cancelled after payment failure",
		zap.String("order_id", updated.ID.Hex()),
		zap.String("reason", reason),
	)
	w.Events.Publish(models.EventPaymentFailed, updated)
	w.Events.Publish(models.EventOrderCancelled, updated)
	return nil
}
