package routes

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/pianostore/internal/checkout"
	"github.com/example/pianostore/internal/config"
	"github.com/example/pianostore/internal/handlers"
	"github.com/example/pianostore/internal/metrics"
	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/payment"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/realtime"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/session"
)

// Runtime is the long-lived state behind the routes. main sweeps it and shuts
// it down.
type Runtime struct {
	Cache     *query.Cache
	Checkouts *checkout.Registry
	Channels  *realtime.Manager
}

// Register wires up all HTTP routes. db may be nil, in which case payment
// returns are verified but not recorded.
func Register(ctx context.Context, app *fiber.App, db *gorm.DB, cfg *config.Config, m *metrics.AppMetrics) *Runtime {
	cache := query.New(cfg.CacheStaleTime, query.WithHooks(m.CacheHooks()))
	backend := services.NewClient(cfg.BackendURL, cfg.BackendTimeout).WithObserver(m.RecordBackendCall)
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	registry := checkout.NewRegistry(cfg.CheckoutIdle)
	tokens := session.NewTokens(cfg.JWTSecret)

	channels := realtime.NewManager(ctx, tokens, func(token string) *realtime.Channel {
		return realtime.NewChannel(realtime.Options{
			URL:    cfg.BackendWSURL,
			Token:  token,
			Cache:  cache,
			Key:    query.Key{tokens.Subject(token), "notifications"},
			Lister: backend.WithToken(token),
			OnEvent: func(n models.Notification) {
				m.NotificationPushed(ctx, n.Type)
			},
		})
	})

	var (
		payments *payment.Handler
		ledger   handlers.PaymentLedger
	)
	if db != nil {
		store := payment.NewStore(db)
		payments = payment.NewHandler(store, telegramService)
		ledger = store
	} else {
		log.Println("[Payment] No database, gateway returns will not be recorded")
		payments = payment.NewHandler(nil, telegramService)
	}

	authHandler := handlers.NewAuthHandler(cache, channels)
	catalogHandler := handlers.NewCatalogHandler(cache)
	cartHandler := handlers.NewCartHandler(cache)
	checkoutHandler := handlers.NewCheckoutHandler(cache, registry, telegramService, m, cfg.CookieSecure)
	paymentHandler := handlers.NewPaymentHandler(cache, payments, ledger, m, cfg.PaymentReturnView)
	profileHandler := handlers.NewProfileHandler(cache)
	orderHandler := handlers.NewOrderHandler(cache)
	notificationHandler := handlers.NewNotificationHandler(cache, channels)
	adminHandler := handlers.NewAdminHandler(cache, ledger)

	app.Use(middleware.Metrics(m))
	app.Use(middleware.Session(middleware.SessionConfig{
		Cookies:  session.CookieOptions{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		Tokens:   tokens,
		Backend:  backend,
		Channels: channels,
	}))

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/register", authHandler.Register)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/admin/login", authHandler.AdminLogin)
	auth.Get("/session", authHandler.Session)

	// Catalog browse
	api.Get("/products", catalogHandler.ListProducts)
	api.Get("/products/:id", catalogHandler.GetProduct)
	api.Get("/catalog/:kind", catalogHandler.ListCatalog)

	// Gateway return lands here without a session guarantee.
	api.Get("/payments/vnpay/return", paymentHandler.VerifyReturn)
	app.Get("/payment/vnpay-return", paymentHandler.ReturnRedirect)

	// Back-office API
	admin := api.Group("/admin", middleware.RequireElevated())

	admin.Get("/dashboard", adminHandler.Dashboard)

	admin.Post("/products", catalogHandler.CreateProduct)
	admin.Put("/products/:id", catalogHandler.UpdateProduct)
	admin.Delete("/products/:id", catalogHandler.DeleteProduct)

	admin.Post("/catalog/:kind", catalogHandler.CreateCatalogEntry)
	admin.Put("/catalog/:kind/:id", catalogHandler.UpdateCatalogEntry)
	admin.Delete("/catalog/:kind/:id", catalogHandler.DeleteCatalogEntry)

	admin.Get("/orders", adminHandler.ListOrders)
	admin.Patch("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Patch("/orders/:id/payment-status", adminHandler.UpdatePaymentStatus)

	admin.Get("/discounts", adminHandler.ListDiscounts)
	admin.Post("/discounts", adminHandler.CreateDiscount)
	admin.Put("/discounts/:id", adminHandler.UpdateDiscount)
	admin.Delete("/discounts/:id", adminHandler.DeleteDiscount)

	admin.Get("/returns", adminHandler.ListReturns)
	admin.Patch("/returns/:id/status", adminHandler.UpdateReturnStatus)

	admin.Get("/payments/returns", paymentHandler.ListReturns)
	admin.Get("/payments/summary", paymentHandler.Summary)
	admin.Get("/payments/:ref", paymentHandler.Snapshot)

	// Protected routes
	protected := api.Group("", middleware.RequireAuth())

	protected.Get("/cart", cartHandler.GetCart)
	protected.Post("/cart/items", cartHandler.AddItem)
	protected.Put("/cart/items/:id", cartHandler.UpdateItem)
	protected.Delete("/cart/items/:id", cartHandler.RemoveItem)
	protected.Delete("/cart", cartHandler.Clear)

	protected.Get("/wishlist", cartHandler.ListWishlist)
	protected.Post("/wishlist", cartHandler.AddToWishlist)
	protected.Delete("/wishlist/:productId", cartHandler.RemoveFromWishlist)

	protected.Get("/checkout", checkoutHandler.State)
	protected.Put("/checkout/address", checkoutHandler.ChooseAddress)
	protected.Put("/checkout/payment-method", checkoutHandler.ChoosePaymentMethod)
	protected.Put("/checkout/note", checkoutHandler.SetNote)
	protected.Post("/checkout/discount", checkoutHandler.ApplyDiscount)
	protected.Delete("/checkout/discount", checkoutHandler.RemoveDiscount)
	protected.Post("/checkout/submit", checkoutHandler.Submit)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Put("/profile/password", profileHandler.ChangePassword)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)
	protected.Patch("/profile/addresses/:id/default", profileHandler.SetDefaultAddress)

	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Patch("/orders/:id/cancel", orderHandler.CancelOrder)
	protected.Post("/orders/:id/pay", paymentHandler.PayAgain)

	protected.Get("/returns", orderHandler.ListReturns)
	protected.Post("/returns", orderHandler.CreateReturn)
	protected.Patch("/returns/:id/cancel", orderHandler.CancelReturn)

	protected.Get("/notifications", notificationHandler.List)
	protected.Get("/notifications/stream", notificationHandler.Stream)
	protected.Patch("/notifications/:id/read", notificationHandler.MarkRead)

	// Back-office pages
	app.Use("/admin", middleware.AdminGate())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir, fiber.Static{Index: "index.html"})
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			return c.SendFile(filepath.Join(cfg.StaticDir, "index.html"))
		})
	}

	return &Runtime{Cache: cache, Checkouts: registry, Channels: channels}
}
