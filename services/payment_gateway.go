package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/webhook"
	"github.com/yashrajoria/storefront/models"
	"go.uber.org/zap"
)

// CheckoutGateway is the hosted payment page provider.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, o *models.Order) (*models.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	Refund(ctx context.Context, paymentIntentID string) error
	ParseWebhook(payload []byte, signature string) (stripe.Event, error)
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	ClientURL     string
	SessionTTL    time.Duration
}

type StripeGateway struct {
	cfg     StripeConfig
	breaker *gobreaker.CircuitBreaker[any]
	logger  *zap.Logger
}

func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) *StripeGateway {
	stripe.Key = cfg.SecretKey
	if cfg.SessionTTL < 30*time.Minute {
		cfg.SessionTTL = 30 * time.Minute
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	return &StripeGateway{cfg: cfg, breaker: newStripeBreaker(logger), logger: logger}
}

func newStripeBreaker(logger *zap.Logger) *gobreaker.CircuitBreaker[any] {
	var st gobreaker.Settings
	st.Name = "stripe"
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}
	// card declines and bad requests say nothing about Stripe's health
	st.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		var se *stripe.Error
		return errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != http.StatusTooManyRequests
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return gobreaker.NewCircuitBreaker[any](st)
}

func guarded[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, o *models.Order) (*models.CheckoutSession, error) {
	currency := strings.ToLower(o.Currency)
	orderID := o.ID.Hex()

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(fmt.Sprintf("%s/verify?success=true&orderId=%s&session_id={CHECKOUT_SESSION_ID}", g.cfg.ClientURL, orderID)),
		CancelURL:         stripe.String(fmt.Sprintf("%s/verify?success=false&orderId=%s", g.cfg.ClientURL, orderID)),
		ClientReferenceID: stripe.String(orderID),
		ExpiresAt:         stripe.Int64(time.Now().Add(g.cfg.SessionTTL).Unix()),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": orderID, "user_id": o.UserID.Hex()},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + orderID)
	params.AddMetadata("order_id", orderID)
	params.AddMetadata("user_id", o.UserID.Hex())
	params.AddMetadata("tracking_id", o.TrackingID)

	for _, it := range o.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(itemLabel(it))}
		if strings.HasPrefix(it.Image, "https://") {
			product.Images = []*string{stripe.String(it.Image)}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(MinorUnits(it.FinalPrice)),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}
	if o.DeliveryFee > 0 {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(MinorUnits(o.DeliveryFee)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String("Delivery charges")},
			},
			Quantity: stripe.Int64(1),
		})
	}

	s, err := guarded(g.breaker, func() (*stripe.CheckoutSession, error) {
		return session.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	g.logger.Info("Checkout session created",
		zap.String("session_id", s.ID),
		zap.String("order_id", orderID),
	)
	return toCheckoutSession(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := guarded(g.breaker, func() (*stripe.CheckoutSession, error) {
		return session.Get(sessionID, params)
	})
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return toCheckoutSession(s), nil
}

func (g *StripeGateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	_, err := guarded(g.breaker, func() (*stripe.CheckoutSession, error) {
		return session.Expire(sessionID, params)
	})
	if err != nil {
		return fmt.Errorf("expire checkout session: %w", err)
	}
	return nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentIntentID)
	r, err := guarded(g.breaker, func() (*stripe.Refund, error) {
		return refund.New(params)
	})
	if err != nil {
		return fmt.Errorf("refund payment: %w", err)
	}
	g.logger.Info("Refund issued",
		zap.String("refund_id", r.ID),
		zap.String("payment_intent_id", paymentIntentID),
		zap.String("status", string(r.Status)),
	)
	return nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}

func toCheckoutSession(s *stripe.CheckoutSession) *models.CheckoutSession {
	out := &models.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		OrderID:       s.Metadata["order_id"],
		PaymentStatus: string(s.PaymentStatus),
		Status:        string(s.Status),
	}
	if out.OrderID == "" {
		out.OrderID = s.ClientReferenceID
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

func itemLabel(it models.OrderItem) string {
	if it.Size == "" {
		return it.Name
	}
	return fmt.Sprintf("%s (%s)", it.Name, it.Size)
}
