package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/polkiloo/draftpay/internal/config"
	"github.com/polkiloo/draftpay/internal/metrics"
	"github.com/polkiloo/draftpay/internal/server/http/handlers"
	"github.com/polkiloo/draftpay/internal/server/http/middleware"
)

// Params lists what the router needs from the container.
type Params struct {
	fx.In

	Facade   handlers.ShopFacade
	Logger   *slog.Logger
	Recorder *metrics.Recorder
	Gatherer prometheus.Gatherer
	Config   *config.Config
}

// Setup configures gin router with handlers and middleware.
func Setup(p Params) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.Tracing())
	engine.Use(middleware.RequestLogger(p.Logger))
	engine.Use(middleware.Metrics(p.Recorder))
	engine.Use(cors.New(corsConfig(p.Config.AllowedOrigins)))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	authHandler := handlers.NewAuthHandler(p.Facade)
	checkoutHandler := handlers.NewCheckoutHandler(p.Facade)
	paymentHandler := handlers.NewPaymentHandler(p.Facade)
	orderHandler := handlers.NewOrderHandler(p.Facade)
	healthHandler := handlers.NewHealthHandler(p.Facade)

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	api.GET("/health", healthHandler.Check)

	user := api.Group("/user")
	user.POST("/register", authHandler.Register)
	user.POST("/login", authHandler.Login)

	userAuth := user.Group("")
	userAuth.Use(middleware.AuthRequired(p.Facade))
	userAuth.GET("/orders", orderHandler.List)
	userAuth.POST("/orders/:number/cancel", orderHandler.Cancel)

	checkout := api.Group("/checkout")
	checkout.POST("/drafts", middleware.OptionalAuth(p.Facade), checkoutHandler.CreateDraft)
	checkout.GET("/drafts/:reservation", checkoutHandler.Get)

	payments := api.Group("/payments")
	payments.POST("/session/:reservation", paymentHandler.Session)
	payments.POST("/confirm", paymentHandler.Confirm)
	payments.POST("/webhook", paymentHandler.Webhook)

	api.GET("/orders/status/:number", orderHandler.Status)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(p.Facade), middleware.AdminRequired())
	admin.PATCH("/orders/:number/status", orderHandler.Advance)

	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Encoding", "Authorization"},
		ExposeHeaders:    []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
