package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"farmstore_back_end/internal/handlers/checkout"
	"farmstore_back_end/internal/handlers/orders"
	"farmstore_back_end/internal/handlers/product"
	"farmstore_back_end/internal/middleware"
)

// Deps bundles everything the route tree needs. Built once in main.
type Deps struct {
	Checkout  *checkout.Handler
	Webhook   *checkout.WebhookHandler
	Orders    *orders.Handler
	Products  *product.Handler
	Redis     *redis.Client
	JWTSecret string
}

// Register mounts the full HTTP surface.
func Register(r *gin.Engine, d Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiLimit := middleware.RateLimit(d.Redis, "api", 120, time.Minute)
	checkoutLimit := middleware.RateLimit(d.Redis, "checkout", 10, time.Minute)

	r.GET("/products", apiLimit, d.Products.List)
	r.GET("/products/:id", apiLimit, d.Products.GetByID)

	co := r.Group("/checkout")
	{
		co.POST("/session", checkoutLimit, d.Checkout.CreateSession)
		co.POST("/validate-discount", apiLimit, d.Checkout.ValidateDiscount)
		// The webhook is called by the payment processor, never by
		// browsers; it stays outside the rate limiters.
		co.POST("/webhook", d.Webhook.Handle)
	}

	auth := middleware.AuthRequired(d.JWTSecret)
	admin := middleware.RequireAdmin()

	or := r.Group("/orders", auth)
	{
		or.GET("", admin, d.Orders.List)
		or.GET("/search", admin, d.Orders.SearchOrders)
		or.GET("/my", d.Orders.MyOrders)
		or.GET("/:id", d.Orders.GetByID)
		or.PUT("/:id/status", admin, d.Orders.UpdateStatus)
		or.PUT("/:id/cancel", d.Orders.CancelOrder)
	}
}
