package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/yashrajoria/storefront/models"
)

func sessionEvent(t *testing.T, id string, typ stripe.EventType, orderID, paymentStatus string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             "cs_test_" + orderID,
		"object":         "checkout.session",
		"payment_status": paymentStatus,
		"status":         "complete",
		"payment_intent": "pi_" + orderID,
		"metadata":       map[string]string{"order_id": orderID},
	})
	require.NoError(t, err)
	return stripe.Event{ID: id, Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func intentFailedEvent(t *testing.T, id, orderID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":                 "pi_" + orderID,
		"object":             "payment_intent",
		"metadata":           map[string]string{"order_id": orderID},
		"last_payment_error": map[string]string{"message": "Your card was declined."},
	})
	require.NoError(t, err)
	return stripe.Event{ID: id, Type: stripe.EventTypePaymentIntentPaymentFailed, Data: &stripe.EventData{Raw: raw}}
}

func (s *shop) deliver(t *testing.T, event stripe.Event) {
	t.Helper()
	s.gateway.event = event
	svcErr := s.paySvc.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=sig")
	require.Nil(t, svcErr)
}

func TestWebhook_CheckoutCompleted(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	_, svcErr := s.cart.AddItem(ctx, s.buyer.ID.Hex(), &models.CartItemRequest{ProductID: s.shirt.ID.Hex(), Size: "S", Quantity: 2})
	require.Nil(t, svcErr)

	resp, svcErr := s.orderSvc.PlaceOrder(ctx, s.buyer.ID, &models.PlaceOrderRequest{
		Address:       &s.address,
		PaymentMethod: models.PaymentMethodOnline,
	})
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	// cart survives until payment lands
	items, _ := s.cart.Items(ctx, s.buyer.ID.Hex())
	require.Len(t, items, 1)

	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid"))

	stored := s.orders.only()
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
	assert.True(t, stored.StockDeducted)
	assert.Equal(t, 3, s.stock.get(s.shirt.ID, "S"))

	payment := s.payments.items[stored.ID]
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	assert.Equal(t, "pi_"+orderID, payment.StripePaymentIntentID)
	assert.NotNil(t, payment.PaidAt)

	items, _ = s.cart.Items(ctx, s.buyer.ID.Hex())
	assert.Empty(t, items)
}

func TestWebhook_DuplicateDeliveryDeductsOnce(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 2))
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	// same event id twice, then a distinct event for the same session
	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid"))
	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid"))
	s.deliver(t, sessionEvent(t, "evt_2", stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, orderID, "paid"))

	assert.Equal(t, 3, s.stock.get(s.shirt.ID, "S"))
	assert.Equal(t, models.PaymentStatusPaid, s.orders.only().PaymentStatus)
}

func TestWebhook_CompletedButUnpaidIsIgnored(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 1))
	require.Nil(t, svcErr)

	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, resp.Order.ID.Hex(), "unpaid"))

	assert.Equal(t, models.PaymentStatusPending, s.orders.only().PaymentStatus)
	assert.Equal(t, 5, s.stock.get(s.shirt.ID, "S"))
}

func TestWebhook_OutOfStockAtPaymentRefunds(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "M", 2))
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	// a COD buyer takes the last units before the card payment settles
	s.stock.set(s.shirt.ID, "M", 1)

	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid"))

	stored := s.orders.only()
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Equal(t, models.PaymentStatusRefunded, stored.PaymentStatus)
	assert.False(t, stored.StockDeducted)
	assert.Equal(t, 1, s.stock.get(s.shirt.ID, "M"))
	assert.Equal(t, []string{"pi_" + orderID}, s.gateway.refunded)
	assert.Equal(t, models.PaymentStatusRefunded, s.payments.items[stored.ID].Status)
}

func TestWebhook_PaymentFailedCancelsOrder(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 1))
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	s.deliver(t, intentFailedEvent(t, "evt_1", orderID))

	stored := s.orders.only()
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, "Your card was declined.", stored.CancelReason)
	// nothing was deducted, so nothing comes back
	assert.Equal(t, 5, s.stock.get(s.shirt.ID, "S"))
	assert.Equal(t, []string{resp.Order.StripeSessionID}, s.gateway.expired)
	assert.Equal(t, "Your card was declined.", s.payments.items[stored.ID].FailureReason)
}

func TestWebhook_SessionExpired(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.mug, "", 1))
	require.Nil(t, svcErr)

	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionExpired, resp.Order.ID.Hex(), "unpaid"))

	stored := s.orders.only()
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Equal(t, "Checkout session expired", stored.CancelReason)
	assert.Empty(t, s.gateway.expired)
}

func TestWebhook_PaymentAfterCancellationIsRefunded(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.mug, "", 1))
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	_, svcErr = s.orderSvc.CancelOrder(ctx, s.buyer.ID, orderID, "")
	require.Nil(t, svcErr)

	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid"))

	assert.Equal(t, []string{"pi_" + orderID}, s.gateway.refunded)
	assert.Equal(t, 10, s.stock.get(s.mug.ID, ""))
	assert.Equal(t, models.PaymentStatusRefunded, s.orders.only().PaymentStatus)
}

func TestWebhook_UnknownOrderAndEventsAreAcknowledged(t *testing.T) {
	s := newShop()
	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, "64b7f0c2a1e3d4b5c6a7f8e9", "paid"))
	s.deliver(t, stripe.Event{ID: "evt_2", Type: "customer.created", Data: &stripe.EventData{Raw: []byte("{}")}})
}

func TestWebhook_BadSignature(t *testing.T) {
	s := newShop()
	s.gateway.parseErr = errBoom

	svcErr := s.paySvc.HandleWebhook(context.Background(), []byte("{}"), "bad")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
}

func TestWebhook_ReleasesClaimOnServerError(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 1))
	require.Nil(t, svcErr)
	s.stock.decrementErr[s.shirt.ID] = errBoom

	s.gateway.event = sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, resp.Order.ID.Hex(), "paid")
	svcErr = s.paySvc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, []string{"evt_1"}, s.claims.released)
	assert.False(t, s.orders.only().StockDeducted)

	// Stripe retries once the store recovers
	delete(s.stock.decrementErr, s.shirt.ID)
	s.deliver(t, s.gateway.event)
	assert.Equal(t, models.PaymentStatusPaid, s.orders.only().PaymentStatus)
	assert.Equal(t, 4, s.stock.get(s.shirt.ID, "S"))
}

func TestVerifyPayment(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 1))
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	s.gateway.session = &models.CheckoutSession{ID: resp.Order.StripeSessionID, OrderID: orderID, Status: "open", PaymentStatus: "unpaid"}
	o, svcErr := s.paySvc.VerifyPayment(ctx, s.buyer.ID, orderID)
	require.Nil(t, svcErr)
	assert.Equal(t, models.PaymentStatusPending, o.PaymentStatus)

	s.gateway.session = &models.CheckoutSession{ID: resp.Order.StripeSessionID, OrderID: orderID, Status: "complete", PaymentStatus: "paid", PaymentIntentID: "pi_x"}
	o, svcErr = s.paySvc.VerifyPayment(ctx, s.buyer.ID, orderID)
	require.Nil(t, svcErr)
	assert.Equal(t, models.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, o.Status)
	assert.Equal(t, 4, s.stock.get(s.shirt.ID, "S"))
	// one transaction to place, one to record the payment
	assert.Equal(t, 2, s.tx.calls)

	// the webhook arriving afterwards changes nothing
	s.deliver(t, sessionEvent(t, "evt_late", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid"))
	assert.Equal(t, 4, s.stock.get(s.shirt.ID, "S"))
}

func TestVerifyPayment_Guards(t *testing.T) {
	s := newShop()
	ctx := context.Background()

	cod, svcErr := s.place(models.PaymentMethodCOD, s.line(s.mug, "", 1))
	require.Nil(t, svcErr)
	_, svcErr = s.paySvc.VerifyPayment(ctx, s.buyer.ID, cod.Order.ID.Hex())
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)

	online, svcErr := s.place(models.PaymentMethodOnline, s.line(s.mug, "", 1))
	require.Nil(t, svcErr)
	_, svcErr = s.paySvc.VerifyPayment(ctx, newShop().buyer.ID, online.Order.ID.Hex())
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)

	s.gateway.getErr = errBoom
	_, svcErr = s.paySvc.VerifyPayment(ctx, s.buyer.ID, online.Order.ID.Hex())
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadGateway, svcErr.StatusCode)
}

func TestWebhook_OrderLookupFailureIsRetried(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 2))
	require.Nil(t, svcErr)
	s.orders.findErr = errBoom

	s.gateway.event = sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, resp.Order.ID.Hex(), "paid")
	svcErr = s.paySvc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, []string{"evt_1"}, s.claims.released)
	assert.Equal(t, models.PaymentStatusPending, s.orders.only().PaymentStatus)

	s.orders.findErr = nil
	s.deliver(t, s.gateway.event)
	stored := s.orders.only()
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
	assert.Equal(t, 3, s.stock.get(s.shirt.ID, "S"))
}

func TestWebhook_ConcurrentDeliveryKeepsStockTaken(t *testing.T) {
	s := newShop()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 2))
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	// a second delivery commits the payment while the first is still taking stock
	s.stock.beforeDecrement = func() {
		second := sessionEvent(t, "evt_2", stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, orderID, "paid")
		s.gateway.event = second
		require.Nil(t, s.paySvc.HandleWebhook(context.Background(), []byte("{}"), "sig"))
	}
	s.gateway.event = sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid")
	svcErr = s.paySvc.HandleWebhook(context.Background(), []byte("{}"), "sig")
	require.Nil(t, svcErr)

	stored := s.orders.only()
	assert.Equal(t, models.OrderStatusProcessing, stored.Status)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	assert.True(t, stored.StockDeducted)
	assert.Equal(t, 3, s.stock.get(s.shirt.ID, "S"))
	assert.Empty(t, s.claims.released)
}

func TestWebhook_CancelDuringStockDeductionRefunds(t *testing.T) {
	s := newShop()
	ctx := context.Background()
	resp, svcErr := s.place(models.PaymentMethodOnline, s.line(s.shirt, "S", 2))
	require.Nil(t, svcErr)
	orderID := resp.Order.ID.Hex()

	s.stock.beforeDecrement = func() {
		_, cancelErr := s.orderSvc.CancelOrder(ctx, s.buyer.ID, orderID, "changed my mind")
		require.Nil(t, cancelErr)
	}
	s.deliver(t, sessionEvent(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, orderID, "paid"))

	stored := s.orders.only()
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Equal(t, models.PaymentStatusRefunded, stored.PaymentStatus)
	assert.False(t, stored.StockDeducted)
	assert.Equal(t, 5, s.stock.get(s.shirt.ID, "S"))
	assert.Equal(t, []string{"pi_" + orderID}, s.gateway.refunded)
}
