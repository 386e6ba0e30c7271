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

// InventoryService guards per-size stock. Deduction is a conditional
// decrement per line with compensation; there is no hold or reservation
// state between Check and Deduct, so Deduct can still fail after a
// successful Check.
type InventoryService interface {
	GetStock(ctx context.Context, productID string) ([]models.Inventory, *ServiceError)
	SetStock(ctx context.Context, productID string, req *models.SetStockRequest) (*models.Inventory, *ServiceError)
	StockFor(ctx context.Context, productIDs []primitive.ObjectID) (map[StockKey]int, error)
	Check(ctx context.Context, lines []models.StockLine) *ServiceError
	Deduct(ctx context.Context, lines []models.StockLine) *ServiceError
	Restore(ctx context.Context, lines []models.StockLine) error
}

type StockKey struct {
	ProductID primitive.ObjectID
	Size      string
}

type inventoryServiceImpl struct {
	repo     repository.InventoryRepository
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewInventoryService(repo repository.InventoryRepository, products repository.ProductRepository, logger *zap.Logger) InventoryService {
	return &inventoryServiceImpl{repo: repo, products: products, logger: logger}
}

func (s *inventoryServiceImpl) GetStock(ctx context.Context, productID string) ([]models.Inventory, *ServiceError) {
	id, svcErr := parseID(productID, "product")
	if svcErr != nil {
		return nil, svcErr
	}
	if _, err := s.products.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Product not found")
		}
		return nil, internal("Failed to load product")
	}
	rows, err := s.repo.FindByProduct(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load inventory", zap.String("product_id", productID), zap.Error(err))
		return nil, internal("Failed to load inventory")
	}
	return rows, nil
}

func (s *inventoryServiceImpl) SetStock(ctx context.Context, productID string, req *models.SetStockRequest) (*models.Inventory, *ServiceError) {
	id, svcErr := parseID(productID, "product")
	if svcErr != nil {
		return nil, svcErr
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Product not found")
		}
		return nil, internal("Failed to load product")
	}
	if !product.HasSize(req.Size) {
		return nil, badRequest(fmt.Sprintf("Size %q is not offered for this product", req.Size))
	}

	inv, err := s.repo.Upsert(ctx, id, req.Size, *req.Stock)
	if err != nil {
		s.logger.Error("Failed to set stock", zap.String("product_id", productID), zap.String("size", req.Size), zap.Error(err))
		return nil, internal("Failed to update stock")
	}
	s.logger.Info("Stock updated", zap.String("product_id", productID), zap.String("size", req.Size), zap.Int("stock", inv.Stock))
	return inv, nil
}

func (s *inventoryServiceImpl) StockFor(ctx context.Context, productIDs []primitive.ObjectID) (map[StockKey]int, error) {
	rows, err := s.repo.FindByProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[StockKey]int, len(rows))
	for _, r := range rows {
		out[StockKey{r.ProductID, r.Size}] = r.Stock
	}
	return out, nil
}

func (s *inventoryServiceImpl) Check(ctx context.Context, lines []models.StockLine) *ServiceError {
	lines = mergeStockLines(lines)
	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	stock, err := s.StockFor(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load inventory for check", zap.Error(err))
		return internal("Failed to check stock")
	}
	for _, l := range lines {
		available := stock[StockKey{l.ProductID, l.Size}]
		if available < l.Quantity {
			return badRequest(shortfallMessage(l, available))
		}
	}
	return nil
}

// Deduct takes every line or none. On the first line whose guard fails the
// lines already taken are put back.
func (s *inventoryServiceImpl) Deduct(ctx context.Context, lines []models.StockLine) *ServiceError {
	lines = mergeStockLines(lines)
	for i, l := range lines {
		err := s.repo.Decrement(ctx, l.ProductID, l.Size, l.Quantity)
		if err == nil {
			continue
		}

		if rbErr := s.Restore(ctx, lines[:i]); rbErr != nil {
			s.logger.Error("CRITICAL: stock rollback incomplete", zap.Error(rbErr))
		}
		if errors.Is(err, repository.ErrInsufficientStock) {
			s.logger.Warn("Stock deduction refused",
				zap.String("product_id", l.ProductID.Hex()),
				zap.String("size", l.Size),
				zap.Int("quantity", l.Quantity),
			)
			return conflict(shortfallMessage(l, -1))
		}
		s.logger.Error("Stock deduction failed", zap.String("product_id", l.ProductID.Hex()), zap.Error(err))
		return internal("Failed to update stock")
	}
	return nil
}

// Restore adds every line back, continuing past failures and returning the
// first error.
func (s *inventoryServiceImpl) Restore(ctx context.Context, lines []models.StockLine) error {
	var first error
	for _, l := range mergeStockLines(lines) {
		if err := s.repo.Increment(ctx, l.ProductID, l.Size, l.Quantity); err != nil {
			s.logger.Error("Failed to restore stock",
				zap.String("product_id", l.ProductID.Hex()),
				zap.String("size", l.Size),
				zap.Int("quantity", l.Quantity),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// mergeStockLines folds repeated (product, size) pairs so a basket listing
// the same item twice is checked against its combined quantity.
func mergeStockLines(lines []models.StockLine) []models.StockLine {
	idx := make(map[StockKey]int, len(lines))
	out := make([]models.StockLine, 0, len(lines))
	for _, l := range lines {
		k := StockKey{l.ProductID, l.Size}
		if i, ok := idx[k]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[k] = len(out)
		out = append(out, l)
	}
	return out
}

func shortfallMessage(l models.StockLine, available int) string {
	name := l.Name
	if name == "" {
		name = l.ProductID.Hex()
	}
	label := name
	if l.Size != "" {
		label = fmt.Sprintf("%s (size %s)", name, l.Size)
	}
	if available < 0 {
		return "Insufficient stock for " + label
	}
	if available == 0 {
		return label + " is out of stock"
	}
	return fmt.Sprintf("Only %d left in stock for %s", available, label)
}
