package routes

import (
	"net/http"

	"marketplace-backend/config"
	"marketplace-backend/handlers"
	"marketplace-backend/middleware"
	"marketplace-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps are the process-wide collaborators the routes are wired to.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Notifier handlers.OrderNotifier
	Limiter  *middleware.RateLimiter
	Log      zerolog.Logger
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	cfg := deps.Config
	categoryService := services.NewCategoryService(deps.DB, deps.Log)

	// Initialize handlers
	categoryHandler := &handlers.CategoryHandler{Service: categoryService}
	productHandler := &handlers.ProductHandler{DB: deps.DB, Categories: categoryService, Log: deps.Log}
	cartHandler := &handlers.CartHandler{DB: deps.DB}
	wishlistHandler := &handlers.WishlistHandler{DB: deps.DB}
	orderHandler := &handlers.OrderHandler{DB: deps.DB, Notifier: deps.Notifier, Shop: cfg.Shop, Log: deps.Log}
	vendorHandler := &handlers.VendorHandler{DB: deps.DB, Log: deps.Log}

	auth := middleware.AuthMiddleware(cfg.Auth.JWTSecret)

	// Public routes
	api := r.Group("/api")
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Middleware())
	}
	{
		// Category catalogue
		api.GET("/categories", categoryHandler.GetCategories)
		api.GET("/categories/top", categoryHandler.GetTopCategories)
		api.GET("/categories/with-counts", categoryHandler.GetCategoriesWithCounts)
		api.GET("/categories/:slug", categoryHandler.GetCategory)
		api.GET("/categories/:slug/breadcrumb", categoryHandler.GetBreadcrumb)

		// Storefront
		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/:slug", productHandler.GetProduct)
		api.GET("/vendors/:slug", vendorHandler.GetVendor)
	}

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(auth)
	{
		// Cart routes
		protected.GET("/cart", cartHandler.GetCart)
		protected.POST("/cart", cartHandler.AddToCart)
		protected.PUT("/cart/:id", cartHandler.UpdateCartItem)
		protected.DELETE("/cart/:id", cartHandler.RemoveFromCart)
		protected.DELETE("/cart", cartHandler.ClearCart)

		// Wishlist routes
		protected.GET("/wishlist", wishlistHandler.GetWishlist)
		protected.POST("/wishlist", wishlistHandler.AddToWishlist)
		protected.DELETE("/wishlist/:id", wishlistHandler.RemoveFromWishlist)
		protected.POST("/wishlist/:id/move-to-cart", wishlistHandler.MoveToCart)

		// Order routes
		protected.POST("/orders", orderHandler.CreateOrder)
		protected.GET("/orders", orderHandler.GetOrders)
		protected.GET("/orders/:id", orderHandler.GetOrder)
		protected.GET("/orders/:id/confirmation", orderHandler.GetOrderConfirmation)
	}

	// Vendor dashboard routes (require vendor role)
	vendor := api.Group("/vendor")
	vendor.Use(auth, middleware.VendorMiddleware())
	{
		vendor.GET("/products", productHandler.GetVendorProducts)
		vendor.POST("/products", productHandler.CreateProduct)
		vendor.PUT("/products/:id", productHandler.UpdateProduct)
		vendor.DELETE("/products/:id", productHandler.DeactivateProduct)
	}

	// Admin routes (require admin role)
	admin := api.Group("/admin")
	admin.Use(auth, middleware.AdminMiddleware())
	{
		// Category management
		admin.POST("/categories", categoryHandler.CreateCategory)
		admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
		admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

		// Order management
		admin.GET("/orders", orderHandler.GetAllOrders)
		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)

		// Vendor management
		admin.GET("/vendors", vendorHandler.GetVendors)
		admin.POST("/vendors", vendorHandler.CreateVendor)
		admin.PUT("/vendors/:id/status", vendorHandler.SetVendorStatus)
	}

	// Internal routes (service-to-service, not rate limited)
	internal := r.Group("/api/internal")
	internal.Use(middleware.ServiceKeyMiddleware(cfg.Auth.ServiceKeyHash))
	{
		internal.POST("/orders/:id/confirmation-email", orderHandler.ResendConfirmationEmail)
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
