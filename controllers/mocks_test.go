package controllers_test

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/controllers"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := controllers.RegisterValidators(); err != nil {
		panic(err)
	}
}

// --- Mock ProductService ---

type mockProductService struct {
	listFn    func(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, *services.ServiceError)
	getFn     func(ctx context.Context, id string) (*models.ProductDetail, *services.ServiceError)
	createFn  func(ctx context.Context, req *models.CreateProductRequest) (*models.ProductDetail, *services.ServiceError)
	updateFn  func(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *services.ServiceError)
	deleteFn  func(ctx context.Context, id string) *services.ServiceError
	uploadFn  func(ctx context.Context, id string, file io.Reader, filename, contentType string) (*models.Product, *services.ServiceError)
	presignFn func(ctx context.Context, req *models.PresignUploadRequest) (*models.PresignUploadResponse, *services.ServiceError)
}

func (m *mockProductService) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, *services.ServiceError) {
	return m.listFn(ctx, f)
}
func (m *mockProductService) GetProduct(ctx context.Context, id string) (*models.ProductDetail, *services.ServiceError) {
	return m.getFn(ctx, id)
}
func (m *mockProductService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.ProductDetail, *services.ServiceError) {
	return m.createFn(ctx, req)
}
func (m *mockProductService) UpdateProduct(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *services.ServiceError) {
	return m.updateFn(ctx, id, req)
}
func (m *mockProductService) DeleteProduct(ctx context.Context, id string) *services.ServiceError {
	return m.deleteFn(ctx, id)
}
func (m *mockProductService) UploadImage(ctx context.Context, id string, file io.Reader, filename, contentType string) (*models.Product, *services.ServiceError) {
	return m.uploadFn(ctx, id, file, filename, contentType)
}
func (m *mockProductService) PresignImageUpload(ctx context.Context, req *models.PresignUploadRequest) (*models.PresignUploadResponse, *services.ServiceError) {
	return m.presignFn(ctx, req)
}

// --- Mock OrderService ---

type mockOrderService struct {
	placeFn  func(ctx context.Context, userID primitive.ObjectID, req *models.PlaceOrderRequest) (*models.PlaceOrderResponse, *services.ServiceError)
	mineFn   func(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.Order, int64, *services.ServiceError)
	getFn    func(ctx context.Context, userID primitive.ObjectID, isAdmin bool, id string) (*models.Order, *services.ServiceError)
	trackFn  func(ctx context.Context, userID primitive.ObjectID, isAdmin bool, trackingID string) (*models.Order, *services.ServiceError)
	cancelFn func(ctx context.Context, userID primitive.ObjectID, id, reason string) (*models.Order, *services.ServiceError)
	listFn   func(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, *services.ServiceError)
	statusFn func(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, *services.ServiceError)
	statsFn  func(ctx context.Context) (*models.AdminStats, *services.ServiceError)
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, userID primitive.ObjectID, req *models.PlaceOrderRequest) (*models.PlaceOrderResponse, *services.ServiceError) {
	return m.placeFn(ctx, userID, req)
}
func (m *mockOrderService) MyOrders(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.Order, int64, *services.ServiceError) {
	return m.mineFn(ctx, userID, page, limit)
}
func (m *mockOrderService) GetOrder(ctx context.Context, userID primitive.ObjectID, isAdmin bool, id string) (*models.Order, *services.ServiceError) {
	return m.getFn(ctx, userID, isAdmin, id)
}
func (m *mockOrderService) TrackOrder(ctx context.Context, userID primitive.ObjectID, isAdmin bool, trackingID string) (*models.Order, *services.ServiceError) {
	return m.trackFn(ctx, userID, isAdmin, trackingID)
}
func (m *mockOrderService) CancelOrder(ctx context.Context, userID primitive.ObjectID, id, reason string) (*models.Order, *services.ServiceError) {
	return m.cancelFn(ctx, userID, id, reason)
}
func (m *mockOrderService) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, *services.ServiceError) {
	return m.listFn(ctx, f)
}
func (m *mockOrderService) UpdateStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, *services.ServiceError) {
	return m.statusFn(ctx, id, req)
}
func (m *mockOrderService) Stats(ctx context.Context) (*models.AdminStats, *services.ServiceError) {
	return m.statsFn(ctx)
}

// --- Mock PaymentService ---

type mockPaymentService struct {
	webhookFn func(ctx context.Context, payload []byte, signature string) *services.ServiceError
	verifyFn  func(ctx context.Context, userID primitive.ObjectID, orderID string) (*models.Order, *services.ServiceError)
}

func (m *mockPaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) *services.ServiceError {
	return m.webhookFn(ctx, payload, signature)
}
func (m *mockPaymentService) VerifyPayment(ctx context.Context, userID primitive.ObjectID, orderID string) (*models.Order, *services.ServiceError) {
	return m.verifyFn(ctx, userID, orderID)
}

// --- Mock CartService ---

type mockCartService struct {
	getFn    func(ctx context.Context, userID string) (*models.CartView, *services.ServiceError)
	addFn    func(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *services.ServiceError)
	updateFn func(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *services.ServiceError)
	removeFn func(ctx context.Context, userID, productID, size string) (*models.CartView, *services.ServiceError)
	clearFn  func(ctx context.Context, userID string) *services.ServiceError
}

func (m *mockCartService) GetCart(ctx context.Context, userID string) (*models.CartView, *services.ServiceError) {
	return m.getFn(ctx, userID)
}
func (m *mockCartService) AddItem(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *services.ServiceError) {
	return m.addFn(ctx, userID, req)
}
func (m *mockCartService) UpdateItem(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *services.ServiceError) {
	return m.updateFn(ctx, userID, req)
}
func (m *mockCartService) RemoveItem(ctx context.Context, userID, productID, size string) (*models.CartView, *services.ServiceError) {
	return m.removeFn(ctx, userID, productID, size)
}
func (m *mockCartService) Clear(ctx context.Context, userID string) *services.ServiceError {
	return m.clearFn(ctx, userID)
}
func (m *mockCartService) Items(_ context.Context, _ string) ([]models.CartItem, error) {
	return nil, nil
}

// --- Helpers ---

var testUserID = primitive.NewObjectID()

// withUser stands in for the auth middleware.
func withUser(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", testUserID)
		c.Set("role", role)
		c.Set("user", &models.User{ID: testUserID, Name: "Asha", Role: role})
		c.Next()
	}
}
