package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/config"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/gateway"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/handler"
	authmw "github.com/fairyhunter13/flashsale-purchase-processor/internal/middleware"
	redisqueue "github.com/fairyhunter13/flashsale-purchase-processor/internal/queue/redis"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/sale"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/stats"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/status"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/stock"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/store/postgres"
	storeredis "github.com/fairyhunter13/flashsale-purchase-processor/internal/store/redis"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/supervisor"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/worker"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/cache"
	"github.com/fairyhunter13/flashsale-purchase-processor/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)
	for _, w := range cfg.WarnIfDefaultCredentials() {
		log.Warn().Msg(w)
	}

	// Create context for startup
	ctx := context.Background()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize coordination store client with retry
	redisClient, err := cache.NewClient(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to coordination store")
	}

	// Durable Store repositories (component A).
	userRepo := postgres.NewUserRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	stockRepo := postgres.NewStockRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Coordination Store surfaces (component B).
	jobState := storeredis.NewJobStateStore(redisClient)
	rateLimiter := storeredis.NewRateLimiter(
		redisClient,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		cfg.RateLimit.MaxAttemptsPerMinute,
	)
	saleCache := storeredis.NewSaleCache(redisClient)
	statsCache := storeredis.NewStatsCache(redisClient)

	// Sale Service (component D): also the gateway.SaleResolver and the
	// stock.CacheInvalidator.
	saleService := sale.New(saleRepo, saleCache)

	// Stock Manager (component C): also the sale.LockManager the
	// Lifecycle Ticker serializes its sweep through.
	stockManager := stock.New(pool, stockRepo, saleService)

	// Job Queue (component E).
	jobQueue := redisqueue.New(redisClient, redisqueue.Options{
		Attempts:         cfg.Queue.MaxAttempts,
		BaseBackoff:      time.Duration(cfg.Queue.BaseBackoffMillis) * time.Millisecond,
		RemoveOnComplete: cfg.Queue.RemoveOnComplete,
		RemoveOnFail:     cfg.Queue.RemoveOnFail,
	})

	// Admission Gateway (component F).
	admissionGateway := gateway.New(jobState, rateLimiter, saleService, jobQueue)

	// Purchase Worker Pool (component G): registered with the queue below
	// as a queue.Handler.
	workerPool := worker.New(pool, saleService, stockManager, orderRepo, jobState)

	// Status Service (component H) and Stats Aggregator (component I).
	statusService := status.New(jobState)
	statsAggregator := stats.New(saleRepo, orderRepo, stockRepo, statsCache)

	// Lifecycle Ticker (component J).
	lifecycleTicker := sale.NewTicker(
		saleRepo, stockManager, saleService,
		time.Duration(cfg.Sale.TickerIntervalSeconds)*time.Second,
	)

	sup := supervisor.New(jobQueue, workerPool.Handle, cfg.Queue.WorkerPoolSize, lifecycleTicker)
	sup.Start(ctx)

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Flash Sale Purchase Processor",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())
	app.Use(authmw.DevAuth(userRepo)) // stand-in for the out-of-scope bearer-auth gateway

	dbPinger := pingerFunc(pool.Ping)
	cachePinger := cache.NewPinger(redisClient)

	healthHandler := handler.NewHealthHandler(dbPinger)
	saleHandler := handler.NewSaleHandler(saleService)
	purchaseHandler := handler.NewPurchaseHandler(admissionGateway)
	statusHandler := handler.NewStatusHandler(statusService)
	queueHandler := handler.NewQueueHandler(jobQueue, dbPinger, cachePinger)
	statsHandler := handler.NewStatsHandler(statsAggregator)

	app.Get("/health", healthHandler.Check)
	app.Get("/flash-sale/status", saleHandler.GetStatus)
	app.Post("/purchase", purchaseHandler.Purchase)
	app.Get("/purchase/status", statusHandler.GetUserStatus)
	app.Get("/purchase/job/:jobId", statusHandler.GetJobStatus)
	app.Get("/queue/stats", queueHandler.GetStats)
	app.Get("/queue/health", queueHandler.GetHealth)
	app.Get("/admin/flash-sale/:saleId/stats", statsHandler.GetStats)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("stopping worker pool and lifecycle ticker...")
	if err := sup.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error stopping supervisor")
	}

	log.Info().Msg("closing coordination store connection...")
	_ = redisClient.Close()

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// pingerFunc adapts pool.Ping's signature to the handler package's Pinger
// interface.
type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
