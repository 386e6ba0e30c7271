package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const presignExpiry = 15 * time.Minute

type ProductService interface {
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, *ServiceError)
	GetProduct(ctx context.Context, id string) (*models.ProductDetail, *ServiceError)
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.ProductDetail, *ServiceError)
	UpdateProduct(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *ServiceError)
	DeleteProduct(ctx context.Context, id string) *ServiceError
	UploadImage(ctx context.Context, id string, file io.Reader, filename, contentType string) (*models.Product, *ServiceError)
	PresignImageUpload(ctx context.Context, req *models.PresignUploadRequest) (*models.PresignUploadResponse, *ServiceError)
}

type productServiceImpl struct {
	repo      repository.ProductRepository
	inventory repository.InventoryRepository
	cache     *ProductCache
	media     MediaStore
	logger    *zap.Logger
}

// NewProductService wires the catalogue. cache and media may be nil.
func NewProductService(
	repo repository.ProductRepository,
	inventory repository.InventoryRepository,
	cache *ProductCache,
	media MediaStore,
	logger *zap.Logger,
) ProductService {
	return &productServiceImpl{
		repo:      repo,
		inventory: inventory,
		cache:     cache,
		media:     media,
		logger:    logger,
	}
}

func (s *productServiceImpl) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, *ServiceError) {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, 0, badRequest("min_price cannot exceed max_price")
	}
	if products, total, ok := s.cache.GetList(ctx, f); ok {
		return products, total, nil
	}

	products, total, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, 0, internal("Failed to fetch products")
	}
	s.cache.SetList(ctx, f, products, total)
	return products, total, nil
}

func (s *productServiceImpl) GetProduct(ctx context.Context, id string) (*models.ProductDetail, *ServiceError) {
	pid, svcErr := parseID(id, "product")
	if svcErr != nil {
		return nil, svcErr
	}

	product, ok := s.cache.GetProduct(ctx, id)
	if !ok {
		p, err := s.repo.FindByID(ctx, pid)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFound("Product not found")
			}
			s.logger.Error("Failed to fetch product", zap.String("product_id", id), zap.Error(err))
			return nil, internal("Failed to fetch product")
		}
		product = p
		s.cache.SetProduct(ctx, product)
	}

	rows, err := s.inventory.FindByProduct(ctx, pid)
	if err != nil {
		s.logger.Error("Failed to fetch stock", zap.String("product_id", id), zap.Error(err))
		return nil, internal("Failed to fetch product")
	}
	return buildDetail(product, rows), nil
}

func buildDetail(p *models.Product, rows []models.Inventory) *models.ProductDetail {
	d := &models.ProductDetail{
		Product:    *p,
		FinalPrice: FinalPrice(p.Price, p.DiscountPercent),
		Stock:      make(map[string]int, len(rows)),
	}
	for _, r := range rows {
		if !p.HasSize(r.Size) {
			continue
		}
		d.Stock[r.Size] = r.Stock
		if r.Stock > 0 {
			d.InStock = true
		}
	}
	return d
}

func (s *productServiceImpl) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.ProductDetail, *ServiceError) {
	product := &models.Product{
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		SubCategory:     req.SubCategory,
		Price:           req.Price,
		DiscountPercent: req.DiscountPercent,
		Images:          req.Images,
		Sizes:           dedupe(req.Sizes),
		Bestseller:      req.Bestseller,
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	for size, qty := range req.Stock {
		if !product.HasSize(size) {
			return nil, badRequest(fmt.Sprintf("Stock given for unknown size %q", size))
		}
		if qty < 0 {
			return nil, badRequest("Stock cannot be negative")
		}
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", zap.Error(err))
		return nil, internal("Failed to create product")
	}

	// every offered size gets a row, so later restores always find one
	sizes := product.Sizes
	if len(sizes) == 0 {
		sizes = []string{""}
	}
	rows := make([]models.Inventory, 0, len(sizes))
	for _, size := range sizes {
		inv, err := s.inventory.Upsert(ctx, product.ID, size, req.Stock[size])
		if err != nil {
			s.logger.Error("Failed to seed stock", zap.String("product_id", product.ID.Hex()), zap.String("size", size), zap.Error(err))
			return nil, internal("Product created but stock could not be saved")
		}
		rows = append(rows, *inv)
	}

	s.cache.Invalidate(ctx, "")
	s.logger.Info("Product created", zap.String("product_id", product.ID.Hex()), zap.String("name", product.Name))
	return buildDetail(product, rows), nil
}

func (s *productServiceImpl) UpdateProduct(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, *ServiceError) {
	pid, svcErr := parseID(id, "product")
	if svcErr != nil {
		return nil, svcErr
	}

	updates := bson.M{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.SubCategory != nil {
		updates["sub_category"] = *req.SubCategory
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.DiscountPercent != nil {
		updates["discount_percent"] = *req.DiscountPercent
	}
	if req.Images != nil {
		updates["images"] = *req.Images
	}
	if req.Sizes != nil {
		updates["sizes"] = dedupe(*req.Sizes)
	}
	if req.Bestseller != nil {
		updates["bestseller"] = *req.Bestseller
	}
	if len(updates) == 0 {
		return nil, badRequest("No update fields provided")
	}

	product, err := s.repo.Update(ctx, pid, updates)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Product not found")
		}
		s.logger.Error("Failed to update product", zap.String("product_id", id), zap.Error(err))
		return nil, internal("Failed to update product")
	}

	if req.Sizes != nil {
		s.seedMissingSizes(ctx, product)
	}
	s.cache.Invalidate(ctx, id)
	return product, nil
}

// seedMissingSizes adds zero-stock rows for sizes introduced by an update.
func (s *productServiceImpl) seedMissingSizes(ctx context.Context, p *models.Product) {
	rows, err := s.inventory.FindByProduct(ctx, p.ID)
	if err != nil {
		s.logger.Warn("Failed to read stock after size change", zap.String("product_id", p.ID.Hex()), zap.Error(err))
		return
	}
	have := make(map[string]bool, len(rows))
	for _, r := range rows {
		have[r.Size] = true
	}
	sizes := p.Sizes
	if len(sizes) == 0 {
		sizes = []string{""}
	}
	for _, size := range sizes {
		if have[size] {
			continue
		}
		if _, err := s.inventory.Upsert(ctx, p.ID, size, 0); err != nil {
			s.logger.Warn("Failed to seed stock for new size", zap.String("product_id", p.ID.Hex()), zap.String("size", size), zap.Error(err))
		}
	}
}

func (s *productServiceImpl) DeleteProduct(ctx context.Context, id string) *ServiceError {
	pid, svcErr := parseID(id, "product")
	if svcErr != nil {
		return svcErr
	}
	if err := s.repo.SoftDelete(ctx, pid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Product not found")
		}
		s.logger.Error("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		return internal("Failed to delete product")
	}
	s.cache.Invalidate(ctx, id)
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

func (s *productServiceImpl) UploadImage(ctx context.Context, id string, file io.Reader, filename, contentType string) (*models.Product, *ServiceError) {
	if s.media == nil {
		return nil, unavailable("Image uploads are not configured")
	}
	pid, svcErr := parseID(id, "product")
	if svcErr != nil {
		return nil, svcErr
	}
	product, err := s.repo.FindByID(ctx, pid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Product not found")
		}
		return nil, internal("Failed to fetch product")
	}

	url, err := s.media.Upload(ctx, file, filename, contentType)
	if err != nil {
		s.logger.Error("Image upload failed", zap.String("product_id", id), zap.Error(err))
		return nil, badGateway("Image upload failed")
	}

	images := append(append([]string{}, product.Images...), url)
	updated, err := s.repo.Update(ctx, pid, bson.M{"images": images})
	if err != nil {
		s.logger.Error("Failed to attach image", zap.String("product_id", id), zap.Error(err))
		return nil, internal("Failed to attach image")
	}
	s.cache.Invalidate(ctx, id)
	return updated, nil
}

func (s *productServiceImpl) PresignImageUpload(ctx context.Context, req *models.PresignUploadRequest) (*models.PresignUploadResponse, *ServiceError) {
	presigner, ok := s.media.(UploadPresigner)
	if !ok {
		return nil, badRequest("Direct uploads are only available with the S3 media backend")
	}
	uploadURL, headers, publicURL, err := presigner.PresignUpload(ctx, req.FileName, req.ContentType, presignExpiry)
	if err != nil {
		s.logger.Error("Failed to presign upload", zap.String("file_name", req.FileName), zap.Error(err))
		return nil, internal("Failed to create upload URL")
	}
	return &models.PresignUploadResponse{
		UploadURL: uploadURL,
		Headers:   headers,
		ImageURL:  publicURL,
		ExpiresIn: int(presignExpiry.Seconds()),
	}, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// productIndex maps products by id.
func productIndex(products []models.Product) map[primitive.ObjectID]*models.Product {
	idx := make(map[primitive.ObjectID]*models.Product, len(products))
	for i := range products {
		idx[products[i].ID] = &products[i]
	}
	return idx
}
