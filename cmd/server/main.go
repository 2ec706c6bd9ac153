package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"farmstore_back_end/internal/config"
	"farmstore_back_end/internal/database"
	"farmstore_back_end/internal/fulfillment"
	"farmstore_back_end/internal/handlers/checkout"
	"farmstore_back_end/internal/handlers/orders"
	"farmstore_back_end/internal/handlers/product"
	"farmstore_back_end/internal/ledger"
	"farmstore_back_end/internal/payments"
	"farmstore_back_end/internal/repository"
	"farmstore_back_end/internal/routes"
	"farmstore_back_end/internal/services"
	"farmstore_back_end/internal/utils"
)

func main() {
	cfg := config.Load()
	database.ConnectDatabases(cfg)

	stripeClient := payments.New(payments.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.Currency,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	})

	orderRepo := repository.NewOrderRepository(database.Mongo)
	productRepo := repository.NewProductRepository(database.Mongo, database.Redis)
	discountRepo := repository.NewDiscountRepository(database.Mongo)
	books := ledger.New(database.Mongo)

	engine := &fulfillment.Engine{
		Orders:    orderRepo,
		Products:  productRepo,
		Discounts: discountRepo,
		Ledger:    books,
	}
	if cfg.FrontendInvoiceURL != "" {
		engine.Invoices = &utils.InvoiceRenderer{FrontendURL: cfg.FrontendInvoiceURL}
	}
	if cfg.SMTPHost != "" {
		engine.Mailer = &utils.Mailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}
	}
	if database.MinIO != nil {
		engine.Archive = &services.InvoiceArchive{Client: database.MinIO, Bucket: cfg.InvoiceBucket}
	}

	var search *services.OrderSearchIndex
	if database.Elastic != nil {
		search = &services.OrderSearchIndex{Client: database.Elastic}
		engine.Search = search
	}

	r := gin.Default()
	routes.Register(r, routes.Deps{
		Checkout: &checkout.Handler{
			Products:  productRepo,
			Discounts: discountRepo,
			Payments:  stripeClient,
		},
		Webhook: &checkout.WebhookHandler{
			Verifier:  stripeClient,
			Fulfiller: engine,
		},
		Orders: &orders.Handler{
			Orders:   orderRepo,
			Products: productRepo,
			Payments: stripeClient,
			Ledger:   books,
			Search:   search,
		},
		Products:  &product.Handler{Products: productRepo},
		Redis:     database.Redis,
		JWTSecret: cfg.JWTSecret,
	})

	log.Printf("🚀 Server listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server stopped: %v", err)
	}
}
