package main // Entry point package

import (
	"context"   // cancellation for the background workers
	"log"       // Logging library
	"os"        // signal plumbing
	"os/signal" // graceful shutdown on interrupt
	"syscall"   // SIGTERM from the orchestrator
	"time"      // shutdown timeout and worker settings

	"github.com/joho/godotenv"    // loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/hotel-room-reservation/internal/config"     // Internal config loader
	"github.com/iliyamo/hotel-room-reservation/internal/database"   // MySQL connection pool
	"github.com/iliyamo/hotel-room-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/hotel-room-reservation/internal/middleware" // rate limiting and caching
	"github.com/iliyamo/hotel-room-reservation/internal/queue"      // payment consumer + publisher
	"github.com/iliyamo/hotel-room-reservation/internal/repository" // data access layer
	"github.com/iliyamo/hotel-room-reservation/internal/router"     // Internal router setup
	"github.com/iliyamo/hotel-room-reservation/internal/service"    // hold orchestrator, sweeper, converter
)

func main() {
	// Load .env when present; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Redis is optional: a nil client disables rate limiting and caching.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	// Repositories.
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	hotelRepo := repository.NewHotelRepo(db)
	roomRepo := repository.NewRoomRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	holdRepo := repository.NewHoldRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	eventRepo := repository.NewPaymentEventRepo(db)
	store := &repository.TxStore{DB: db}

	// Services.
	orchestrator := service.NewHoldOrchestrator(store, inventoryRepo, holdRepo,
		service.WithHoldTTL(time.Duration(cfg.HoldTTLMin)*time.Minute),
	)
	sweeper := service.NewSweeper(holdRepo, orchestrator,
		service.WithSweepInterval(time.Duration(cfg.SweepIntervalSec)*time.Second),
	)
	converter := service.NewConverter(store, inventoryRepo, holdRepo, bookingRepo, eventRepo,
		service.WithPublisher(queue.PublishBookingConfirmed),
	)

	// Background workers stop when this context is cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)
	go func() {
		if err := queue.StartPaymentConsumer(ctx, converter); err != nil && ctx.Err() == nil {
			log.Printf("payment consumer exited: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}

	router.RegisterRoutes(e) // health check
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, userRepo, tokenRepo), cfg.JWTSecret)
	router.RegisterPublic(e, &handler.PublicHandler{
		HotelRepo:     hotelRepo,
		RoomRepo:      roomRepo,
		InventoryRepo: inventoryRepo,
	})
	router.RegisterCustomer(e,
		handler.NewHoldHandler(orchestrator, hotelRepo, roomRepo),
		handler.NewBookingHandler(bookingRepo, inventoryRepo, store),
		cfg.JWTSecret,
	)
	router.RegisterOwner(e, handler.NewOwnerHandler(hotelRepo, roomRepo, inventoryRepo, store), cfg.JWTSecret)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil { // Start HTTP server
			log.Printf("http server stopped: %v", err)
			cancel()
		}
	}()

	// Block until interrupted, then drain in-flight requests before exit.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
