package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type PaymentService interface {
	// HandleWebhook verifies and applies one Stripe event. A nil error or a
	// 4xx tells Stripe to stop; a 5xx asks for redelivery.
	HandleWebhook(ctx context.Context, payload []byte, signature string) *ServiceError
	// VerifyPayment asks Stripe for the order's checkout session and applies
	// its outcome, for clients returning from the hosted page before the
	// webhook lands.
	VerifyPayment(ctx context.Context, userID primitive.ObjectID, orderID string) (*models.Order, *ServiceError)
}

type paymentServiceImpl struct {
	orderWorkflow
	claims repository.EventClaimer
}

// NewPaymentService builds the payment service. claims may be nil, in which
// case duplicate deliveries are only caught by order state.
func NewPaymentService(deps OrderDeps, claims repository.EventClaimer) PaymentService {
	return &paymentServiceImpl{orderWorkflow: orderWorkflow{deps}, claims: claims}
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) *ServiceError {
	event, err := s.Gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return badRequest("Invalid webhook signature")
	}

	log := s.Logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	log.Info("Processing Stripe webhook")

	if s.claims != nil {
		first, err := s.claims.Claim(ctx, event.ID)
		if err != nil {
			log.Warn("Event dedupe unavailable, processing anyway", zap.Error(err))
		} else if !first {
			log.Info("Skipping duplicate webhook delivery")
			return nil
		}
	}

	svcErr := s.dispatch(ctx, event, log)
	if svcErr != nil && svcErr.StatusCode >= 500 && s.claims != nil {
		if err := s.claims.Release(ctx, event.ID); err != nil {
			log.Warn("Failed to release event claim", zap.Error(err))
		}
	}
	return svcErr
}

func (s *paymentServiceImpl) dispatch(ctx context.Context, event stripe.Event, log *zap.Logger) *ServiceError {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, svcErr := decodeSession(event)
		if svcErr != nil {
			return svcErr
		}
		if sess.PaymentStatus != string(stripe.CheckoutSessionPaymentStatusPaid) {
			log.Info("Checkout completed without payment yet", zap.String("payment_status", sess.PaymentStatus))
			return nil
		}
		order, svcErr := s.orderForEvent(ctx, sess.OrderID, log)
		if order == nil {
			return svcErr
		}
		return s.completeCheckout(ctx, order, sess)

	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		sess, svcErr := decodeSession(event)
		if svcErr != nil {
			return svcErr
		}
		order, svcErr := s.orderForEvent(ctx, sess.OrderID, log)
		if order == nil {
			return svcErr
		}
		reason := "Checkout session expired"
		if event.Type == stripe.EventTypeCheckoutSessionAsyncPaymentFailed {
			reason = "Payment failed"
		}
		return s.failCheckout(ctx, order, reason, false)

	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Error("Failed to unmarshal payment intent", zap.Error(err))
			return badRequest("Malformed event payload")
		}
		order, svcErr := s.orderForEvent(ctx, pi.Metadata["order_id"], log)
		if order == nil {
			return svcErr
		}
		reason := "Payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		return s.failCheckout(ctx, order, reason, true)

	default:
		log.Debug("Unhandled webhook event type")
		return nil
	}
}

func decodeSession(event stripe.Event) (*models.CheckoutSession, *ServiceError) {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, badRequest("Malformed event payload")
	}
	return toCheckoutSession(&cs), nil
}

// orderForEvent loads the order an event refers to. Events for unknown
// orders are acknowledged and dropped (nil, nil); a store failure is a 5xx
// so Stripe redelivers.
func (s *paymentServiceImpl) orderForEvent(ctx context.Context, orderID string, log *zap.Logger) (*models.Order, *ServiceError) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		log.Warn("Webhook event carries no usable order id", zap.String("order_id", orderID))
		return nil, nil
	}
	order, err := s.Orders.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("Webhook event for unknown order", zap.String("order_id", orderID))
			return nil, nil
		}
		log.Error("Failed to load order for webhook", zap.String("order_id", orderID), zap.Error(err))
		return nil, internal("Failed to fetch order")
	}
	return order, nil
}

func (s *paymentServiceImpl) VerifyPayment(ctx context.Context, userID primitive.ObjectID, orderID string) (*models.Order, *ServiceError) {
	oid, svcErr := parseID(orderID, "order")
	if svcErr != nil {
		return nil, svcErr
	}
	order, err := s.Orders.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Order not found")
		}
		s.Logger.Error("Failed to fetch order", zap.String("order_id", orderID), zap.Error(err))
		return nil, internal("Failed to fetch order")
	}
	if order.UserID != userID {
		return nil, notFound("Order not found")
	}
	if order.PaymentMethod != models.PaymentMethodOnline {
		return nil, badRequest("Only online payments can be verified")
	}
	if order.PaymentStatus == models.PaymentStatusPaid || order.Status == models.OrderStatusCancelled {
		return order, nil
	}
	if order.StripeSessionID == "" {
		return nil, conflict("Order has no checkout session")
	}

	sess, err := s.Gateway.GetCheckoutSession(ctx, order.StripeSessionID)
	if err != nil {
		s.Logger.Error("Failed to fetch checkout session", zap.String("order_id", orderID), zap.Error(err))
		return nil, badGateway("Could not reach payment provider")
	}

	switch {
	case sess.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid):
		if svcErr := s.completeCheckout(ctx, order, sess); svcErr != nil {
			return nil, svcErr
		}
	case sess.Status == string(stripe.CheckoutSessionStatusExpired):
		if svcErr := s.failCheckout(ctx, order, "Checkout session expired", false); svcErr != nil {
			return nil, svcErr
		}
	default:
		// still open: the buyer has not paid yet
		return order, nil
	}

	updated, err := s.Orders.FindByID(ctx, oid)
	if err != nil {
		s.Logger.Error("Failed to reload order", zap.String("order_id", orderID), zap.Error(err))
		return nil, internal("Failed to fetch order")
	}
	return updated, nil
}
