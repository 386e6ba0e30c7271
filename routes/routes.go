package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront/controllers"
	"github.com/yashrajoria/storefront/middleware"
)

// Controllers bundles every HTTP handler set the API exposes.
type Controllers struct {
	Products  *controllers.ProductController
	Cart      *controllers.CartController
	Addresses *controllers.AddressController
	Orders    *controllers.OrderController
	Payments  *controllers.PaymentController
	Reviews   *controllers.ReviewController
	Users     *controllers.UserController
}

// Register mounts the public, shopper and admin route groups.
func Register(r *gin.Engine, auth *middleware.Authenticator, c Controllers) {
	RegisterProductRoutes(r, c.Products)
	RegisterReviewRoutes(r, auth, c.Reviews)
	RegisterCartRoutes(r, auth, c.Cart)
	RegisterUserRoutes(r, auth, c)
	RegisterAdminRoutes(r, auth, c)

	// Stripe calls this directly; the signature is the authentication.
	r.POST("/webhooks/stripe", c.Payments.StripeWebhook)
}

func RegisterProductRoutes(r *gin.Engine, pc *controllers.ProductController) {
	productRoutes := r.Group("/products")
	{
		productRoutes.GET("", pc.ListProducts)
		productRoutes.GET("/:id", pc.GetProduct)
	}
}

func RegisterReviewRoutes(r *gin.Engine, auth *middleware.Authenticator, rc *controllers.ReviewController) {
	reviewRoutes := r.Group("/reviews")
	reviewRoutes.GET("/product/:productId", rc.ListByProduct)

	authed := reviewRoutes.Group("")
	authed.Use(auth.RequireAuth())
	authed.POST("", rc.Create)
	authed.DELETE("/:id", rc.Delete)
}

func RegisterCartRoutes(r *gin.Engine, auth *middleware.Authenticator, cc *controllers.CartController) {
	cartRoutes := r.Group("/cart")
	cartRoutes.Use(auth.RequireAuth())
	{
		cartRoutes.GET("", cc.GetCart)
		cartRoutes.POST("", cc.AddItem)
		cartRoutes.PUT("", cc.UpdateItem)
		cartRoutes.DELETE("", cc.Clear)
		cartRoutes.DELETE("/items/:productId", cc.RemoveItem)
	}
}

func RegisterUserRoutes(r *gin.Engine, auth *middleware.Authenticator, c Controllers) {
	userRoutes := r.Group("/user")
	userRoutes.Use(auth.RequireAuth())

	userRoutes.GET("/me", c.Users.Me)
	userRoutes.PUT("/me", c.Users.UpdateMe)

	addresses := userRoutes.Group("/addresses")
	{
		addresses.GET("", c.Addresses.List)
		addresses.POST("", c.Addresses.Create)
		addresses.PUT("/:id", c.Addresses.Update)
		addresses.DELETE("/:id", c.Addresses.Delete)
		addresses.POST("/:id/default", c.Addresses.SetDefault)
	}

	orders := userRoutes.Group("/orders")
	{
		orders.POST("", c.Orders.PlaceOrder)
		orders.GET("", c.Orders.MyOrders)
		orders.GET("/track/:trackingId", c.Orders.TrackOrder)
		orders.GET("/:id", c.Orders.GetOrder)
		orders.POST("/:id/cancel", c.Orders.CancelOrder)
		orders.POST("/:id/verify-payment", c.Orders.VerifyPayment)
	}
}

func RegisterAdminRoutes(r *gin.Engine, auth *middleware.Authenticator, c Controllers) {
	adminRoutes := r.Group("/admin")
	adminRoutes.Use(auth.RequireAuth(), middleware.RequireAdmin())

	products := adminRoutes.Group("/products")
	{
		products.POST("", c.Products.CreateProduct)
		products.POST("/presign", c.Products.PresignImageUpload)
		products.PUT("/:id", c.Products.UpdateProduct)
		products.DELETE("/:id", c.Products.DeleteProduct)
		products.POST("/:id/images", c.Products.UploadImage)
		products.GET("/:id/stock", c.Products.GetStock)
		products.PUT("/:id/stock", c.Products.SetStock)
	}

	orders := adminRoutes.Group("/orders")
	{
		orders.GET("", c.Orders.ListOrders)
		orders.GET("/:id", c.Orders.GetOrder)
		orders.PATCH("/:id/status", c.Orders.UpdateStatus)
	}

	adminRoutes.GET("/stats", c.Orders.Stats)
	adminRoutes.GET("/users", c.Users.ListUsers)
	adminRoutes.PATCH("/users/:id/role", c.Users.UpdateRole)
}
