package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/storefront/common/errors"
	"github.com/yashrajoria/storefront/common/logger"
	commonmw "github.com/yashrajoria/storefront/common/middleware"
	"github.com/yashrajoria/storefront/controllers"
	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/middleware"
	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
	"github.com/yashrajoria/storefront/repository"
	"github.com/yashrajoria/storefront/routes"
	"github.com/yashrajoria/storefront/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "storefront"

var errMissingCloudinaryURL = errors.New("CLOUDINARY_URL is not set")

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	// --- AWS setup (optional outside production) ---
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())

	var cwWriter *aws_pkg.CloudWatchLogsWriter
	if cfg.CloudWatchLogGroup != "" && awsErr == nil {
		cwWriter, err = aws_pkg.NewCloudWatchLogsWriter(context.Background(), awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch Logs disabled: %v", err)
		}
	}
	var zl *zap.Logger
	if cwWriter != nil {
		zl, err = logger.InitializeWithWriter(cfg.Env, cwWriter)
	} else {
		zl, err = logger.Initialize(cfg.Env)
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	if awsErr != nil {
		zl.Warn("AWS config unavailable, running without SNS and CloudWatch", zap.Error(awsErr))
	}

	// --- Datastores ---
	mongoClient, db, err := database.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDB, zl)
	if err != nil {
		zl.Fatal("MongoDB connection failed", zap.Error(err))
	}
	if err := database.EnsureIndexes(context.Background(), db); err != nil {
		zl.Fatal("Failed to ensure indexes", zap.Error(err))
	}
	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL, zl)
	if err != nil {
		zl.Fatal("Redis connection failed", zap.Error(err))
	}

	// --- Repositories ---
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	userRepo := repository.NewUserRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cartRepo := repository.NewRedisCartRepository(redisClient, cfg.CartTTL)
	eventClaims := repository.NewRedisEventClaimer(redisClient, "stripe:event:", 72*time.Hour)
	tx := repository.NewMongoTransactor(mongoClient)

	// --- External integrations ---
	var metricsClient *aws_pkg.MetricsClient
	var publisher aws_pkg.SNSPublisher
	if awsErr == nil {
		metricsClient = aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled)
		if cfg.OrderEventsTopicARN != "" {
			publisher = aws_pkg.NewSNSClient(awsCfg)
		}
	}
	var recorder services.MetricsRecorder
	if metricsClient.IsEnabled() {
		recorder = metricsClient
	}
	orderEvents := services.NewOrderEvents(publisher, cfg.OrderEventsTopicARN, recorder, zl)

	media, err := newMediaStore(cfg, awsCfg, awsErr)
	if err != nil {
		zl.Warn("Image uploads disabled", zap.String("backend", cfg.MediaBackend), zap.Error(err))
	}

	gateway := services.NewStripeGateway(services.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		ClientURL:     cfg.ClientURL,
	}, zl)

	// --- Services ---
	pricing := services.NewPricing(cfg.DeliveryFee, cfg.FreeDeliveryThreshold, cfg.Currency)
	productCache := services.NewProductCache(redisClient, cfg.ProductCacheTTL, zl)

	userService := services.NewUserService(userRepo, zl)
	inventoryService := services.NewInventoryService(inventoryRepo, productRepo, zl)
	productService := services.NewProductService(productRepo, inventoryRepo, productCache, media, zl)
	cartService := services.NewCartService(cartRepo, productRepo, inventoryService, pricing, zl)
	addressService := services.NewAddressService(addressRepo, zl)
	reviewService := services.NewReviewService(reviewRepo, productRepo, productCache, zl)

	orderDeps := services.OrderDeps{
		Orders:    orderRepo,
		Payments:  paymentRepo,
		Products:  productRepo,
		Users:     userRepo,
		Stock:     inventoryRepo,
		Inventory: inventoryService,
		Addresses: addressService,
		Carts:     cartService,
		Gateway:   gateway,
		Tx:        tx,
		Events:    orderEvents,
		Pricing:   pricing,
		Logger:    zl,
	}
	orderService := services.NewOrderService(orderDeps)
	paymentService := services.NewPaymentService(orderDeps, eventClaims)

	auth, err := middleware.NewAuthenticator(cfg.ClerkPEMPublicKey, cfg.ClerkIssuer, userService, zl)
	if err != nil {
		zl.Fatal("Auth setup failed", zap.Error(err))
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := controllers.RegisterValidators(); err != nil {
		zl.Fatal("Validator setup failed", zap.Error(err))
	}
	limiter := commonmw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	go limiter.Run(limiterCtx)

	r := gin.New()
	r.Use(apperrors.Recovery(zl))
	r.Use(commonmw.RequestID())
	r.Use(commonmw.Metrics(metricsClient, serviceName))
	r.Use(commonmw.RequestLogger(zl))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORS(cfg.CORSAllowedOrigins))
	r.Use(commonmw.RateLimit(limiter))
	r.Use(commonmw.Timeout(30 * time.Second))

	routes.Register(r, auth, routes.Controllers{
		Products:  controllers.NewProductController(productService, inventoryService),
		Cart:      controllers.NewCartController(cartService),
		Addresses: controllers.NewAddressController(addressService),
		Orders:    controllers.NewOrderController(orderService, paymentService),
		Payments:  controllers.NewPaymentController(paymentService, zl),
		Reviews:   controllers.NewReviewController(reviewService),
		Users:     controllers.NewUserController(userService),
	})

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		checks := gin.H{"mongo": "ok", "redis": "ok"}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			status, checks["mongo"] = http.StatusServiceUnavailable, "unreachable"
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			status, checks["redis"] = http.StatusServiceUnavailable, "unreachable"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "service": serviceName, "checks": checks})
	})

	// --- HTTP server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zl.Info("Storefront API started", zap.String("port", cfg.Port), zap.String("media_backend", cfg.MediaBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Initiating graceful shutdown...")
	stopLimiter()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		zl.Error("Redis close error", zap.Error(err))
	}
	if err := database.DisconnectMongo(mongoClient); err != nil {
		zl.Error("MongoDB close error", zap.Error(err))
	}

	zl.Info("Storefront API stopped gracefully")
}

// newMediaStore builds the configured image backend. A nil store with an
// error means uploads answer 503 while the rest of the API keeps running.
func newMediaStore(cfg *Config, awsCfg sdkaws.Config, awsErr error) (services.MediaStore, error) {
	switch cfg.MediaBackend {
	case "s3":
		if awsErr != nil {
			return nil, awsErr
		}
		store := aws_pkg.NewS3Store(awsCfg, cfg.S3MediaBucket, cfg.S3PublicURL)
		return services.NewS3MediaStore(store, cfg.S3MediaPrefix), nil
	default:
		if cfg.CloudinaryURL == "" {
			return nil, errMissingCloudinaryURL
		}
		store, err := services.NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
