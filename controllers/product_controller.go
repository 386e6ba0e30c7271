package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

const (
	maxImageBytes = 5 << 20
	// room for the multipart boundaries and part headers around the file
	maxUploadBodyBytes = maxImageBytes + 64<<10
)

var allowedSorts = map[string]bool{
	"":           true,
	"price_asc":  true,
	"price_desc": true,
	"newest":     true,
	"rating":     true,
}

type ProductController struct {
	productService   services.ProductService
	inventoryService services.InventoryService
}

func NewProductController(productService services.ProductService, inventoryService services.InventoryService) *ProductController {
	return &ProductController{productService: productService, inventoryService: inventoryService}
}

// ListProducts handles GET /products.
func (pc *ProductController) ListProducts(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	filter := models.ProductFilter{
		Category:    strings.TrimSpace(ctx.Query("category")),
		SubCategory: strings.TrimSpace(ctx.Query("sub_category")),
		Search:      strings.TrimSpace(ctx.Query("search")),
		Sort:        ctx.Query("sort"),
		Page:        page,
		Limit:       limit,
	}
	if !allowedSorts[filter.Sort] {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sort option"})
		return
	}
	if raw := ctx.Query("bestseller"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bestseller flag"})
			return
		}
		filter.Bestseller = &b
	}
	for key, dst := range map[string]**float64{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		raw := ctx.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
			return
		}
		*dst = &v
	}

	products, total, svcErr := pc.productService.ListProducts(ctx.Request.Context(), filter)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"products": products,
		"meta":     paginationMeta(page, limit, total),
	})
}

// GetProduct handles GET /products/:id.
func (pc *ProductController) GetProduct(ctx *gin.Context) {
	product, svcErr := pc.productService.GetProduct(ctx.Request.Context(), ctx.Param("id"))
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// CreateProduct handles POST /admin/products.
func (pc *ProductController) CreateProduct(ctx *gin.Context) {
	var req models.CreateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	product, svcErr := pc.productService.CreateProduct(ctx.Request.Context(), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"product": product})
}

// UpdateProduct handles PUT /admin/products/:id.
func (pc *ProductController) UpdateProduct(ctx *gin.Context) {
	var req models.UpdateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	product, svcErr := pc.productService.UpdateProduct(ctx.Request.Context(), ctx.Param("id"), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// DeleteProduct handles DELETE /admin/products/:id.
func (pc *ProductController) DeleteProduct(ctx *gin.Context) {
	if svcErr := pc.productService.DeleteProduct(ctx.Request.Context(), ctx.Param("id")); svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// UploadImage handles POST /admin/products/:id/images (multipart field "image").
func (pc *ProductController) UploadImage(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadBodyBytes)
	fh, err := ctx.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image must be 5MB or smaller"})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required"})
		return
	}
	if fh.Size > maxImageBytes {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image must be 5MB or smaller"})
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are allowed"})
		return
	}

	file, err := fh.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Could not read image"})
		return
	}
	defer file.Close()

	product, svcErr := pc.productService.UploadImage(ctx.Request.Context(), ctx.Param("id"), file, fh.Filename, contentType)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// PresignImageUpload handles POST /admin/products/presign.
func (pc *ProductController) PresignImageUpload(ctx *gin.Context) {
	var req models.PresignUploadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are allowed"})
		return
	}
	resp, svcErr := pc.productService.PresignImageUpload(ctx.Request.Context(), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetStock handles GET /admin/products/:id/stock.
func (pc *ProductController) GetStock(ctx *gin.Context) {
	rows, svcErr := pc.inventoryService.GetStock(ctx.Request.Context(), ctx.Param("id"))
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"inventory": rows})
}

// SetStock handles PUT /admin/products/:id/stock.
func (pc *ProductController) SetStock(ctx *gin.Context) {
	var req models.SetStockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		renderBindError(ctx, err)
		return
	}
	inv, svcErr := pc.inventoryService.SetStock(ctx.Request.Context(), ctx.Param("id"), &req)
	if svcErr != nil {
		renderError(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"inventory": inv})
}
