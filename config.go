package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
)

type Config struct {
	Env  string
	Port string

	MongoURI string
	MongoDB  string
	RedisURL string

	ClerkPEMPublicKey string
	ClerkIssuer       string

	StripeSecretKey     string
	StripeWebhookSecret string
	ClientURL           string

	MediaBackend     string // cloudinary | s3
	CloudinaryURL    string
	CloudinaryFolder string
	S3MediaBucket    string
	S3MediaPrefix    string
	S3PublicURL      string

	OrderEventsTopicARN string
	MetricsEnabled      bool
	MetricsNamespace    string
	CloudWatchLogGroup  string

	DeliveryFee           float64
	FreeDeliveryThreshold float64
	Currency              string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	CartTTL            time.Duration
	ProductCacheTTL    time.Duration
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "4000"),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "storefront"),
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		ClerkPEMPublicKey: os.Getenv("CLERK_PEM_PUBLIC_KEY"),
		ClerkIssuer:       os.Getenv("CLERK_ISSUER"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		ClientURL:           getEnv("CLIENT_URL", "http://localhost:5173"),

		MediaBackend:     strings.ToLower(getEnv("MEDIA_BACKEND", "cloudinary")),
		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "storefront/products"),
		S3MediaBucket:    os.Getenv("S3_MEDIA_BUCKET"),
		S3MediaPrefix:    getEnv("S3_MEDIA_PREFIX", "products"),
		S3PublicURL:      os.Getenv("S3_PUBLIC_URL"),

		OrderEventsTopicARN: os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", false),
		MetricsNamespace:    getEnv("METRICS_NAMESPACE", "Storefront"),
		CloudWatchLogGroup:  os.Getenv("CLOUDWATCH_LOG_GROUP"),

		DeliveryFee:           getEnvFloat("DELIVERY_FEE", 10),
		FreeDeliveryThreshold: getEnvFloat("FREE_DELIVERY_THRESHOLD", 2000),
		Currency:              strings.ToUpper(getEnv("CURRENCY", "INR")),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 30),
		CartTTL:            time.Duration(getEnvInt("CART_TTL_HOURS", 24*7)) * time.Hour,
		ProductCacheTTL:    time.Duration(getEnvInt("PRODUCT_CACHE_TTL_SECONDS", 300)) * time.Second,
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		name := getEnv("AWS_SECRET_NAME", "storefront/app")
		m, err := fetchSecretMap(context.Background(), name)
		if err != nil {
			return nil, fmt.Errorf("AWS_USE_SECRETS is set but secret %q could not be loaded: %w", name, err)
		}
		cfg.applySecrets(m)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var fetchSecretMap = func(ctx context.Context, name string) (map[string]string, error) {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return aws_pkg.NewSecretsClient(awsCfg).GetSecretMap(ctx, name)
}

// applySecrets overrides the credential-like values with non-empty
// entries of a Secrets Manager JSON secret.
func (c *Config) applySecrets(m map[string]string) {
	targets := map[string]*string{
		"MONGO_URI":             &c.MongoURI,
		"REDIS_URL":             &c.RedisURL,
		"CLERK_PEM_PUBLIC_KEY":  &c.ClerkPEMPublicKey,
		"STRIPE_SECRET_KEY":     &c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.StripeWebhookSecret,
		"CLOUDINARY_URL":        &c.CloudinaryURL,
	}
	for key, dst := range targets {
		if v := m[key]; v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	required := []struct{ key, val string }{
		{"MONGO_URI", c.MongoURI},
		{"CLERK_PEM_PUBLIC_KEY", c.ClerkPEMPublicKey},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret},
	}
	var missing []string
	for _, r := range required {
		if r.val == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch c.MediaBackend {
	case "cloudinary", "s3":
	default:
		return fmt.Errorf("MEDIA_BACKEND must be cloudinary or s3, got %q", c.MediaBackend)
	}
	if c.MediaBackend == "s3" && c.S3MediaBucket == "" {
		return fmt.Errorf("S3_MEDIA_BUCKET is required when MEDIA_BACKEND=s3")
	}
	if c.DeliveryFee < 0 || c.FreeDeliveryThreshold < 0 {
		return fmt.Errorf("delivery fee and free delivery threshold cannot be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL_HOURS must be positive")
	}
	if c.ProductCacheTTL <= 0 {
		return fmt.Errorf("PRODUCT_CACHE_TTL_SECONDS must be positive")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must list at least one origin")
	}
	for _, o := range c.CORSAllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("CORS origin %q must be * or start with http:// or https://", o)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
