package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/shopworks/storefront-api/internal/config"
	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/handler"
	"github.com/shopworks/storefront-api/internal/middleware"
	"github.com/shopworks/storefront-api/internal/service"
	"github.com/shopworks/storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store       docstore.Store
		dbPool      *pgxpool.Pool
		redisClient *redis.Client
		amqpConn    *amqp.Connection
		amqpCh      *amqp.Channel
		orderWorker *worker.OrderWorker
	)

	switch cfg.Store.Driver {
	case "memory":
		store = docstore.NewMemoryStore()
		log.Info("using in-memory document store")
	default:
		// PostgreSQL
		poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
		if err != nil {
			log.Error("parse db config", "error", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = cfg.DB.MaxConns

		dbPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
		if err := docstore.Migrate(ctx, dbPool); err != nil {
			log.Error("run migrations", "error", err)
			os.Exit(1)
		}
		pgStore, err := docstore.NewPGStore(ctx, dbPool, log)
		if err != nil {
			log.Error("open document store", "error", err)
			os.Exit(1)
		}
		store = pgStore
		log.Info("connected to PostgreSQL")

		// Redis
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("connect to Redis", "error", err)
			os.Exit(1)
		}
		log.Info("connected to Redis")

		// RabbitMQ
		amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			log.Error("connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer amqpConn.Close()

		amqpCh, err = amqpConn.Channel()
		if err != nil {
			log.Error("open RabbitMQ channel", "error", err)
			os.Exit(1)
		}
		defer amqpCh.Close()

		if err := worker.SetupRabbitMQ(amqpCh); err != nil {
			log.Error("setup RabbitMQ", "error", err)
			os.Exit(1)
		}
		log.Info("connected to RabbitMQ")

		orderWorker = worker.NewOrderWorker(amqpCh, store, redisClient, log)
	}

	// Services
	authSvc := service.NewAuthService(store, cfg.JWT.Secret, cfg.JWT.Expiration)
	catalogSvc := service.NewCatalog(store, redisClient, log)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	cartH := handler.NewCartHandler(store, catalogSvc, log)
	orderH := handler.NewOrderHandler(store, amqpCh, log)
	addressH := handler.NewAddressHandler(store)
	profileH := handler.NewProfileHandler(store)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)

		catalog := v1.Group("/catalog", middleware.AuthMiddleware(cfg.JWT.Secret))
		catalog.GET("/special", catalogH.SpecialProducts)
		catalog.GET("/deals", catalogH.BestDeals)
		catalog.GET("/best-products", catalogH.BestProducts)
		catalog.GET("/categories/:category/products", catalogH.CategoryProducts)
		catalog.GET("/categories/:category/offers", catalogH.OfferProducts)
		catalog.GET("/products/:id", catalogH.GetProduct)

		cart := v1.Group("/cart", middleware.AuthMiddleware(cfg.JWT.Secret))
		cart.GET("", cartH.GetCart)
		cart.GET("/stream", cartH.StreamCart)
		cart.POST("/items", cartH.AddItem)
		cart.POST("/items/:id/increase", cartH.IncreaseItem)
		cart.POST("/items/:id/decrease", cartH.DecreaseItem)
		cart.DELETE("/items/:id", cartH.DeleteItem)

		orders := v1.Group("/orders", middleware.AuthMiddleware(cfg.JWT.Secret))
		orders.POST("", orderH.PlaceOrder)
		orders.GET("", orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)

		addresses := v1.Group("/addresses", middleware.AuthMiddleware(cfg.JWT.Secret))
		addresses.POST("", addressH.AddAddress)
		addresses.GET("", addressH.ListAddresses)
		addresses.GET("/stream", addressH.StreamAddresses)

		profile := v1.Group("/profile", middleware.AuthMiddleware(cfg.JWT.Secret))
		profile.GET("", profileH.GetProfile)
		profile.GET("/stream", profileH.StreamProfile)
	}

	if orderWorker != nil {
		if err := orderWorker.Start(ctx); err != nil {
			log.Error("start order worker", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	if orderWorker != nil {
		orderWorker.Stop()
		time.Sleep(500 * time.Millisecond)
	}
	cancel()
	log.Info("server stopped")
}
