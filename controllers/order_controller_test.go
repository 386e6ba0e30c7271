package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/storefront/controllers"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setupOrderRouter(orders services.OrderService, payments services.PaymentService, role string) *gin.Engine {
	r := gin.New()
	oc := controllers.NewOrderController(orders, payments)

	r.Use(withUser(role))
	r.POST("/user/orders", oc.PlaceOrder)
	r.GET("/user/orders", oc.MyOrders)
	r.GET("/user/orders/:id", oc.GetOrder)
	r.POST("/user/orders/:id/cancel", oc.CancelOrder)
	r.POST("/user/orders/:id/verify-payment", oc.VerifyPayment)
	r.GET("/admin/orders", oc.ListOrders)
	r.PATCH("/admin/orders/:id/status", oc.UpdateStatus)
	return r
}

func perform(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestController_PlaceOrder_Online(t *testing.T) {
	var gotUser primitive.ObjectID
	svc := &mockOrderService{
		placeFn: func(_ context.Context, userID primitive.ObjectID, req *models.PlaceOrderRequest) (*models.PlaceOrderResponse, *services.ServiceError) {
			gotUser = userID
			assert.Equal(t, models.PaymentMethodOnline, req.PaymentMethod)
			return &models.PlaceOrderResponse{
				Order:       &models.Order{TrackingID: "ORD-20260101-120000-abcd1234"},
				CheckoutURL: "https://checkout.stripe.test/c/pay/cs_1",
			}, nil
		},
	}
	r := setupOrderRouter(svc, &mockPaymentService{}, models.RoleUser)

	w := perform(r, http.MethodPost, "/user/orders", []byte(`{"payment_method":"online","address_id":"`+primitive.NewObjectID().Hex()+`"}`))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, testUserID, gotUser)
	resp := decode(t, w)
	assert.Equal(t, "https://checkout.stripe.test/c/pay/cs_1", resp["checkout_url"])
}

func TestController_PlaceOrder_BadRequest(t *testing.T) {
	r := setupOrderRouter(&mockOrderService{}, &mockPaymentService{}, models.RoleUser)

	w := perform(r, http.MethodPost, "/user/orders", []byte(`{"payment_method":"bitcoin"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Invalid request", resp["error"])
	assert.NotEmpty(t, resp["details"])

	w = perform(r, http.MethodPost, "/user/orders", []byte(`{"payment_method":"cod","items":[{"product_id":"p","quantity":0}]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/user/orders", []byte(`{"payment_method":"cod","address_id":"a1"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["details"], "PlaceOrderRequest.AddressID: must satisfy objectid")
}

func TestController_PlaceOrder_ServiceError(t *testing.T) {
	svc := &mockOrderService{
		placeFn: func(_ context.Context, _ primitive.ObjectID, _ *models.PlaceOrderRequest) (*models.PlaceOrderResponse, *services.ServiceError) {
			return nil, &services.ServiceError{StatusCode: http.StatusConflict, Message: "Insufficient stock for Mug"}
		},
	}
	r := setupOrderRouter(svc, &mockPaymentService{}, models.RoleUser)

	w := perform(r, http.MethodPost, "/user/orders", []byte(`{"payment_method":"cod"}`))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Insufficient stock for Mug", decode(t, w)["error"])
}

func TestController_MyOrders_Pagination(t *testing.T) {
	svc := &mockOrderService{
		mineFn: func(_ context.Context, _ primitive.ObjectID, page, limit int) ([]models.Order, int64, *services.ServiceError) {
			assert.Equal(t, 2, page)
			assert.Equal(t, 100, limit)
			return []models.Order{{TrackingID: "ORD-1"}}, 250, nil
		},
	}
	r := setupOrderRouter(svc, &mockPaymentService{}, models.RoleUser)

	w := perform(r, http.MethodGet, "/user/orders?page=2&limit=500", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["total_pages"])
	assert.Equal(t, true, meta["has_more"])
}

func TestController_CancelOrder_OptionalBody(t *testing.T) {
	var reasons []string
	svc := &mockOrderService{
		cancelFn: func(_ context.Context, _ primitive.ObjectID, _ string, reason string) (*models.Order, *services.ServiceError) {
			reasons = append(reasons, reason)
			return &models.Order{Status: models.OrderStatusCancelled}, nil
		},
	}
	r := setupOrderRouter(svc, &mockPaymentService{}, models.RoleUser)

	w := perform(r, http.MethodPost, "/user/orders/o1/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = perform(r, http.MethodPost, "/user/orders/o1/cancel", []byte(`{"reason":"Changed my mind"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"", "Changed my mind"}, reasons)
}

func TestController_GetOrder_PassesAdminFlag(t *testing.T) {
	var admin bool
	svc := &mockOrderService{
		getFn: func(_ context.Context, _ primitive.ObjectID, isAdmin bool, _ string) (*models.Order, *services.ServiceError) {
			admin = isAdmin
			return &models.Order{}, nil
		},
	}
	r := setupOrderRouter(svc, &mockPaymentService{}, models.RoleAdmin)

	w := perform(r, http.MethodGet, "/user/orders/o1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, admin)
}

func TestController_VerifyPayment(t *testing.T) {
	payments := &mockPaymentService{
		verifyFn: func(_ context.Context, _ primitive.ObjectID, orderID string) (*models.Order, *services.ServiceError) {
			if orderID == "missing" {
				return nil, &services.ServiceError{StatusCode: http.StatusNotFound, Message: "Order not found"}
			}
			return &models.Order{PaymentStatus: models.PaymentStatusPaid}, nil
		},
	}
	r := setupOrderRouter(&mockOrderService{}, payments, models.RoleUser)

	w := perform(r, http.MethodPost, "/user/orders/o1/verify-payment", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = perform(r, http.MethodPost, "/user/orders/missing/verify-payment", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestController_ListOrders_Filters(t *testing.T) {
	svc := &mockOrderService{
		listFn: func(_ context.Context, f models.OrderFilter) ([]models.Order, int64, *services.ServiceError) {
			assert.Equal(t, models.OrderStatusShipped, f.Status)
			assert.Equal(t, models.PaymentStatusPaid, f.PaymentStatus)
			return []models.Order{}, 0, nil
		},
	}
	r := setupOrderRouter(svc, &mockPaymentService{}, models.RoleAdmin)

	w := perform(r, http.MethodGet, "/admin/orders?status=shipped&payment_status=paid", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodGet, "/admin/orders?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestController_UpdateStatus(t *testing.T) {
	svc := &mockOrderService{
		statusFn: func(_ context.Context, _ string, req *models.UpdateOrderStatusRequest) (*models.Order, *services.ServiceError) {
			return &models.Order{Status: req.Status}, nil
		},
	}
	r := setupOrderRouter(svc, &mockPaymentService{}, models.RoleAdmin)

	w := perform(r, http.MethodPatch, "/admin/orders/o1/status", []byte(`{"status":"shipped"}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodPatch, "/admin/orders/o1/status", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestController_MissingUser(t *testing.T) {
	r := gin.New()
	oc := controllers.NewOrderController(&mockOrderService{}, &mockPaymentService{})
	r.GET("/user/orders", oc.MyOrders)

	w := perform(r, http.MethodGet, "/user/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
