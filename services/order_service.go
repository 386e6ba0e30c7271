package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const lowStockThreshold = 5

type OrderService interface {
	PlaceOrder(ctx context.Context, userID primitive.ObjectID, req *models.PlaceOrderRequest) (*models.PlaceOrderResponse, *ServiceError)
	MyOrders(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.Order, int64, *ServiceError)
	// GetOrder and TrackOrder hide other users' orders unless isAdmin.
	GetOrder(ctx context.Context, userID primitive.ObjectID, isAdmin bool, id string) (*models.Order, *ServiceError)
	TrackOrder(ctx context.Context, userID primitive.ObjectID, isAdmin bool, trackingID string) (*models.Order, *ServiceError)
	CancelOrder(ctx context.Context, userID primitive.ObjectID, id, reason string) (*models.Order, *ServiceError)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, *ServiceError)
	UpdateStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, *ServiceError)
	Stats(ctx context.Context) (*models.AdminStats, *ServiceError)
}

type orderServiceImpl struct {
	orderWorkflow
}

func NewOrderService(deps OrderDeps) OrderService {
	return &orderServiceImpl{orderWorkflow{deps}}
}

// GenerateTrackingID returns a human-facing order reference.
func GenerateTrackingID() string {
	return "ORD-" + time.Now().Format("20060102-150405") + "-" + uuid.New().String()[:8]
}

func (s *orderServiceImpl) PlaceOrder(ctx context.Context, userID primitive.ObjectID, req *models.PlaceOrderRequest) (*models.PlaceOrderResponse, *ServiceError) {
	if req.PaymentMethod != models.PaymentMethodCOD && req.PaymentMethod != models.PaymentMethodOnline {
		return nil, badRequest("Payment method must be cod or online")
	}

	lines, svcErr := s.requestedLines(ctx, userID, req.Items)
	if svcErr != nil {
		return nil, svcErr
	}
	address, svcErr := s.Addresses.Resolve(ctx, userID, req.AddressID, req.Address)
	if svcErr != nil {
		return nil, svcErr
	}
	items, svcErr := s.buildItems(ctx, lines)
	if svcErr != nil {
		return nil, svcErr
	}

	order := &models.Order{
		ID:              primitive.NewObjectID(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: *address,
		Currency:        s.Pricing.Currency,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		Status:          models.OrderStatusPlaced,
	}
	if svcErr := s.Inventory.Check(ctx, order.StockLines()); svcErr != nil {
		return nil, svcErr
	}

	lineTotals := make([]float64, len(items))
	for i, it := range items {
		lineTotals[i] = it.LineTotal
	}
	order.Subtotal, order.DeliveryFee, order.Total = s.Pricing.Totals(lineTotals)

	log := s.Logger.With(zap.String("user_id", userID.Hex()), zap.String("payment_method", string(req.PaymentMethod)))

	if req.PaymentMethod == models.PaymentMethodCOD {
		if svcErr := s.Inventory.Deduct(ctx, order.StockLines()); svcErr != nil {
			return nil, svcErr
		}
		order.StockDeducted = true
		if err := s.persist(ctx, order); err != nil {
			log.Error("Failed to save order", zap.Error(err))
			if rbErr := s.Inventory.Restore(ctx, order.StockLines()); rbErr != nil {
				log.Error("CRITICAL: stock restore after failed order incomplete", zap.Error(rbErr))
			}
			return nil, internal("Failed to place order")
		}
		if svcErr := s.Carts.Clear(ctx, userID.Hex()); svcErr != nil {
			log.Warn("Failed to clear cart after order", zap.String("error", svcErr.Message))
		}
		log.Info("Order placed", zap.String("tracking_id", order.TrackingID), zap.Float64("total", order.Total))
		s.Events.Publish(models.EventOrderPlaced, order)
		return &models.PlaceOrderResponse{Order: order}, nil
	}

	if err := s.persist(ctx, order); err != nil {
		log.Error("Failed to save order", zap.Error(err))
		return nil, internal("Failed to place order")
	}
	sess, err := s.Gateway.CreateCheckoutSession(ctx, order)
	if err != nil {
		log.Error("Failed to create checkout session", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		if _, uerr := s.Orders.UpdateIfStatus(ctx, order.ID, []models.OrderStatus{models.OrderStatusPlaced}, bson.M{
			"status":         models.OrderStatusCancelled,
			"payment_status": models.PaymentStatusFailed,
			"cancel_reason":  "Payment session could not be created",
			"cancelled_at":   time.Now().UTC(),
		}); uerr != nil {
			log.Error("Failed to cancel order without checkout session", zap.String("order_id", order.ID.Hex()), zap.Error(uerr))
		}
		s.updatePayment(ctx, order, bson.M{"status": models.PaymentStatusFailed, "failure_reason": "checkout session not created"})
		return nil, badGateway("Payment provider is unavailable, please try again")
	}

	order.StripeSessionID = sess.ID
	if err := s.Orders.Update(ctx, order.ID, bson.M{"stripe_session_id": sess.ID}); err != nil {
		log.Error("Failed to save checkout session id", zap.String("order_id", order.ID.Hex()), zap.Error(err))
	}
	s.updatePayment(ctx, order, bson.M{"stripe_session_id": sess.ID})

	log.Info("Order awaiting payment", zap.String("tracking_id", order.TrackingID), zap.String("session_id", sess.ID))
	s.Events.Publish(models.EventOrderPlaced, order)
	return &models.PlaceOrderResponse{Order: order, CheckoutURL: sess.URL}, nil
}

// requestedLines returns the request's lines, or the cart's when the
// request names none.
func (s *orderServiceImpl) requestedLines(ctx context.Context, userID primitive.ObjectID, items []models.OrderLineRequest) ([]models.OrderLineRequest, *ServiceError) {
	if len(items) > 0 {
		return items, nil
	}
	cartItems, err := s.Carts.Items(ctx, userID.Hex())
	if err != nil {
		s.Logger.Error("Failed to read cart for checkout", zap.String("user_id", userID.Hex()), zap.Error(err))
		return nil, internal("Failed to read cart")
	}
	if len(cartItems) == 0 {
		return nil, badRequest("Your cart is empty")
	}
	lines := make([]models.OrderLineRequest, len(cartItems))
	for i, it := range cartItems {
		lines[i] = models.OrderLineRequest{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity}
	}
	return lines, nil
}

// buildItems prices each line from the current catalogue. Repeated
// product and size pairs are folded into one item.
func (s *orderServiceImpl) buildItems(ctx context.Context, lines []models.OrderLineRequest) ([]models.OrderItem, *ServiceError) {
	type key struct {
		id   primitive.ObjectID
		size string
	}
	keys := make([]key, 0, len(lines))
	qty := make(map[key]int, len(lines))
	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, badRequest("Quantity must be at least 1")
		}
		id, svcErr := parseID(l.ProductID, "product")
		if svcErr != nil {
			return nil, svcErr
		}
		k := key{id, l.Size}
		if _, seen := qty[k]; !seen {
			keys = append(keys, k)
			ids = append(ids, id)
		}
		qty[k] += l.Quantity
	}

	products, err := s.Products.FindByIDs(ctx, ids)
	if err != nil {
		s.Logger.Error("Failed to load products for order", zap.Error(err))
		return nil, internal("Failed to load products")
	}
	byID := productIndex(products)

	items := make([]models.OrderItem, 0, len(keys))
	for _, k := range keys {
		p, ok := byID[k.id]
		if !ok {
			return nil, notFound(fmt.Sprintf("Product %s not found", k.id.Hex()))
		}
		if !p.HasSize(k.size) {
			return nil, badRequest(fmt.Sprintf("Size %q is not offered for %s", k.size, p.Name))
		}
		final := FinalPrice(p.Price, p.DiscountPercent)
		item := models.OrderItem{
			ProductID:       p.ID,
			Name:            p.Name,
			Size:            k.size,
			Quantity:        qty[k],
			UnitPrice:       p.Price,
			DiscountPercent: p.DiscountPercent,
			FinalPrice:      final,
			LineTotal:       LineTotal(final, qty[k]),
		}
		if len(p.Images) > 0 {
			item.Image = p.Images[0]
		}
		items = append(items, item)
	}
	return items, nil
}

// persist writes the order and its payment record in one transaction,
// drawing a new tracking id once if the first collides.
func (s *orderServiceImpl) persist(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		order.TrackingID = GenerateTrackingID()
		err = s.Tx.WithTransaction(ctx, func(tctx context.Context) error {
			if err := s.Orders.Create(tctx, order); err != nil {
				return err
			}
			return s.Payments.Create(tctx, &models.PaymentDetails{
				OrderID:  order.ID,
				UserID:   order.UserID,
				Method:   order.PaymentMethod,
				Amount:   order.Total,
				Currency: order.Currency,
				Status:   models.PaymentStatusPending,
			})
		})
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return err
}

func (s *orderServiceImpl) MyOrders(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.Order, int64, *ServiceError) {
	return s.ListOrders(ctx, models.OrderFilter{UserID: &userID, Page: page, Limit: limit})
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, *ServiceError) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, badRequest("Invalid order status")
	}
	orders, total, err := s.Orders.List(ctx, f)
	if err != nil {
		s.Logger.Error("Failed to list orders", zap.Error(err))
		return nil, 0, internal("Failed to fetch orders")
	}
	return orders, total, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, userID primitive.ObjectID, isAdmin bool, id string) (*models.Order, *ServiceError) {
	order, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if !isAdmin && order.UserID != userID {
		return nil, notFound("Order not found")
	}
	return order, nil
}

func (s *orderServiceImpl) TrackOrder(ctx context.Context, userID primitive.ObjectID, isAdmin bool, trackingID string) (*models.Order, *ServiceError) {
	order, err := s.Orders.FindByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Order not found")
		}
		s.Logger.Error("Failed to track order", zap.String("tracking_id", trackingID), zap.Error(err))
		return nil, internal("Failed to fetch order")
	}
	if !isAdmin && order.UserID != userID {
		return nil, notFound("Order not found")
	}
	return order, nil
}

func (s *orderServiceImpl) CancelOrder(ctx context.Context, userID primitive.ObjectID, id, reason string) (*models.Order, *ServiceError) {
	order, svcErr := s.GetOrder(ctx, userID, false, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if !order.Status.UserCancellable() {
		return nil, conflict(fmt.Sprintf("Order is %s and can no longer be cancelled", order.Status))
	}
	if reason == "" {
		reason = "Cancelled by customer"
	}
	return s.cancel(ctx, order, reason)
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, *ServiceError) {
	if !req.Status.Valid() {
		return nil, badRequest("Invalid order status")
	}
	order, svcErr := s.load(ctx, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if order.Status == req.Status {
		return nil, badRequest(fmt.Sprintf("Order is already %s", req.Status))
	}
	if !order.Status.CanTransition(req.Status) {
		return nil, badRequest(fmt.Sprintf("Cannot move order from %s to %s", order.Status, req.Status))
	}

	if req.Status == models.OrderStatusCancelled {
		reason := req.Reason
		if reason == "" {
			reason = "Cancelled by store"
		}
		return s.cancel(ctx, order, reason)
	}
	if order.PaymentMethod == models.PaymentMethodOnline && order.PaymentStatus != models.PaymentStatusPaid {
		return nil, conflict("Order is awaiting payment")
	}

	now := time.Now().UTC()
	updates := bson.M{"status": req.Status}
	codCollected := req.Status == models.OrderStatusDelivered && order.PaymentMethod == models.PaymentMethodCOD
	if req.Status == models.OrderStatusDelivered {
		updates["delivered_at"] = now
	}
	if codCollected {
		updates["payment_status"] = models.PaymentStatusPaid
	}

	updated, err := s.Orders.UpdateIfStatus(ctx, order.ID, []models.OrderStatus{order.Status}, updates)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflict("Order was updated concurrently, please retry")
		}
		s.Logger.Error("Failed to update order status", zap.String("order_id", id), zap.Error(err))
		return nil, internal("Failed to update order status")
	}
	if codCollected {
		s.updatePayment(ctx, updated, bson.M{"status": models.PaymentStatusPaid, "paid_at": now})
	}

	s.Logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(order.Status)),
		zap.String("to", string(updated.Status)),
	)
	s.Events.Publish(models.EventOrderStatusChanged, updated)
	return updated, nil
}

func (s *orderServiceImpl) Stats(ctx context.Context) (*models.AdminStats, *ServiceError) {
	total, revenue, byStatus, err := s.Orders.Stats(ctx)
	if err != nil {
		s.Logger.Error("Failed to aggregate orders", zap.Error(err))
		return nil, internal("Failed to fetch stats")
	}
	products, err := s.Products.Count(ctx)
	if err != nil {
		s.Logger.Error("Failed to count products", zap.Error(err))
		return nil, internal("Failed to fetch stats")
	}
	users, err := s.Users.Count(ctx)
	if err != nil {
		s.Logger.Error("Failed to count users", zap.Error(err))
		return nil, internal("Failed to fetch stats")
	}
	lowStock, err := s.Stock.CountLowStock(ctx, lowStockThreshold)
	if err != nil {
		s.Logger.Error("Failed to count low stock", zap.Error(err))
		return nil, internal("Failed to fetch stats")
	}
	return &models.AdminStats{
		TotalOrders:    total,
		Revenue:        revenue,
		OrdersByStatus: byStatus,
		TotalProducts:  products,
		TotalUsers:     users,
		LowStockItems:  lowStock,
	}, nil
}

func (s *orderServiceImpl) load(ctx context.Context, id string) (*models.Order, *ServiceError) {
	oid, svcErr := parseID(id, "order")
	if svcErr != nil {
		return nil, svcErr
	}
	order, err := s.Orders.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Order not found")
		}
		s.Logger.Error("Failed to fetch order", zap.String("order_id", id), zap.Error(err))
		return nil, internal("Failed to fetch order")
	}
	return order, nil
}
