package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxCartLineQuantity = 100

type CartService interface {
	GetCart(ctx context.Context, userID string) (*models.CartView, *ServiceError)
	AddItem(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *ServiceError)
	UpdateItem(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *ServiceError)
	RemoveItem(ctx context.Context, userID, productID, size string) (*models.CartView, *ServiceError)
	Clear(ctx context.Context, userID string) *ServiceError
	// Items returns the raw cart lines for checkout.
	Items(ctx context.Context, userID string) ([]models.CartItem, error)
}

type cartServiceImpl struct {
	carts     repository.CartRepository
	products  repository.ProductRepository
	inventory InventoryService
	pricing   Pricing
	logger    *zap.Logger
}

func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	inventory InventoryService,
	pricing Pricing,
	logger *zap.Logger,
) CartService {
	return &cartServiceImpl{
		carts:     carts,
		products:  products,
		inventory: inventory,
		pricing:   pricing,
		logger:    logger,
	}
}

func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (*models.CartView, *ServiceError) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, internal("Failed to load cart")
	}
	return s.price(ctx, cart)
}

func (s *cartServiceImpl) AddItem(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *ServiceError) {
	if req.Quantity < 1 {
		return nil, badRequest("Quantity must be at least 1")
	}
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, internal("Failed to load cart")
	}

	qty := req.Quantity
	idx := cart.Find(req.ProductID, req.Size)
	if idx >= 0 {
		qty += cart.Items[idx].Quantity
	}
	if qty > maxCartLineQuantity {
		return nil, badRequest(fmt.Sprintf("At most %d of one item per cart", maxCartLineQuantity))
	}
	if svcErr := s.ensureAvailable(ctx, req.ProductID, req.Size, qty); svcErr != nil {
		return nil, svcErr
	}

	if idx >= 0 {
		cart.Items[idx].Quantity = qty
	} else {
		cart.Items = append(cart.Items, models.CartItem{ProductID: req.ProductID, Size: req.Size, Quantity: qty})
	}
	return s.save(ctx, cart)
}

func (s *cartServiceImpl) UpdateItem(ctx context.Context, userID string, req *models.CartItemRequest) (*models.CartView, *ServiceError) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, internal("Failed to load cart")
	}
	idx := cart.Find(req.ProductID, req.Size)
	if idx < 0 {
		return nil, notFound("Item not in cart")
	}

	if req.Quantity == 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		return s.save(ctx, cart)
	}
	if svcErr := s.ensureAvailable(ctx, req.ProductID, req.Size, req.Quantity); svcErr != nil {
		return nil, svcErr
	}
	cart.Items[idx].Quantity = req.Quantity
	return s.save(ctx, cart)
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, productID, size string) (*models.CartView, *ServiceError) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, internal("Failed to load cart")
	}
	idx := cart.Find(productID, size)
	if idx < 0 {
		return nil, notFound("Item not in cart")
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.save(ctx, cart)
}

func (s *cartServiceImpl) Clear(ctx context.Context, userID string) *ServiceError {
	if err := s.carts.Delete(ctx, userID); err != nil {
		s.logger.Error("Failed to clear cart", zap.String("user_id", userID), zap.Error(err))
		return internal("Failed to clear cart")
	}
	return nil
}

func (s *cartServiceImpl) Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

func (s *cartServiceImpl) save(ctx context.Context, cart *models.Cart) (*models.CartView, *ServiceError) {
	if err := s.carts.Save(ctx, cart); err != nil {
		s.logger.Error("Failed to save cart", zap.String("user_id", cart.UserID), zap.Error(err))
		return nil, internal("Failed to save cart")
	}
	return s.price(ctx, cart)
}

// ensureAvailable rejects a line whose product is gone, whose size is not
// offered, or whose quantity exceeds current stock.
func (s *cartServiceImpl) ensureAvailable(ctx context.Context, productID, size string, qty int) *ServiceError {
	pid, svcErr := parseID(productID, "product")
	if svcErr != nil {
		return svcErr
	}
	product, err := s.products.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Product not found")
		}
		s.logger.Error("Failed to load product for cart", zap.String("product_id", productID), zap.Error(err))
		return internal("Failed to load product")
	}
	if !product.HasSize(size) {
		return badRequest(fmt.Sprintf("Size %q is not offered for %s", size, product.Name))
	}
	return s.inventory.Check(ctx, []models.StockLine{{ProductID: pid, Size: size, Quantity: qty, Name: product.Name}})
}

// price joins cart lines with live product and stock data. Lines whose
// product vanished or ran short stay in the cart but count toward nothing.
func (s *cartServiceImpl) price(ctx context.Context, cart *models.Cart) (*models.CartView, *ServiceError) {
	view := &models.CartView{Items: []models.PricedCartLine{}, Currency: s.pricing.Currency}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, it := range cart.Items {
		if id, err := primitive.ObjectIDFromHex(it.ProductID); err == nil {
			ids = append(ids, id)
		}
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load cart products", zap.String("user_id", cart.UserID), zap.Error(err))
		return nil, internal("Failed to load cart")
	}
	stock, err := s.inventory.StockFor(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load cart stock", zap.String("user_id", cart.UserID), zap.Error(err))
		return nil, internal("Failed to load cart")
	}
	byID := productIndex(products)

	lineTotals := make([]float64, 0, len(cart.Items))
	for _, it := range cart.Items {
		line := models.PricedCartLine{CartItem: it}
		id, _ := primitive.ObjectIDFromHex(it.ProductID)
		if p, ok := byID[id]; ok {
			line.Name = p.Name
			if len(p.Images) > 0 {
				line.Image = p.Images[0]
			}
			line.UnitPrice = p.Price
			line.DiscountPercent = p.DiscountPercent
			line.FinalPrice = FinalPrice(p.Price, p.DiscountPercent)
			line.LineTotal = LineTotal(line.FinalPrice, it.Quantity)
			line.Available = p.HasSize(it.Size) && stock[StockKey{id, it.Size}] >= it.Quantity
		}
		if line.Available {
			lineTotals = append(lineTotals, line.LineTotal)
		}
		view.Items = append(view.Items, line)
	}
	view.Subtotal, view.DeliveryFee, view.Total = s.pricing.Totals(lineTotals)
	return view, nil
}
