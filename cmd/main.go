package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/authz"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/config"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/handler"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/handler/middleware"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/identity/google"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/repository"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/repository/postgres"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/repository/redisstore"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/service"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/pkg/token"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Select and initialize the credential store backend
	sessionRepo, closeStore, err := initSessionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	defer closeStore()
	log.Printf("✓ Session store ready (%s)", cfg.Session.StoreBackend)

	// Load RSA keys for the token service
	privateKey, publicKey, err := loadRSAKeys(cfg)
	if err != nil {
		log.Fatalf("Failed to load RSA keys: %v", err)
	}
	log.Println("✓ RSA keys loaded")

	tokenService, err := token.NewTokenService(
		privateKey,
		publicKey,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
		cfg.JWT.Issuer,
	)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	// Google ID-token verifier (fetches Google's keys at startup)
	verifier, err := google.New(ctx, cfg.Google.ClientID)
	if err != nil {
		log.Fatalf("Failed to initialize Google verifier: %v", err)
	}
	log.Println("✓ Google identity verifier ready")

	validate := validator.NewValidator()

	// Services and handlers
	sessionService := service.NewSessionService(sessionRepo, verifier, tokenService)
	authorizer := authz.NewAuthorizer(tokenService)

	sessionHandler := handler.NewSessionHandler(sessionService, validate, cfg)
	healthHandler := handler.NewHealthHandler()
	jwksHandler := handler.NewJWKSHandler(tokenService.GetPublicKey(), "2025-01-01")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Progress Bars Sessions v1.0",
		ErrorHandler: customErrorHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware(cfg))

	authorizeMiddleware := middleware.AuthorizeMiddleware(authorizer, handler.AccessTokenCookie)

	handler.SetupRoutes(app, sessionHandler, healthHandler, jwksHandler, authorizeMiddleware)

	// Periodic sweep of expired session records
	go sweepExpiredSessions(ctx, sessionService, cfg.Session.SweepInterval)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("🚀 Server starting on http://localhost%s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		if err := app.Listen(addr); err != nil {
			log.Printf("❌ Server failed to start: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("⏳ Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server stopped")
}

// initSessionStore builds the configured repository backend and returns
// it with its cleanup function.
func initSessionStore(cfg *config.Config) (repository.SessionRepository, func(), error) {
	switch cfg.Session.StoreBackend {
	case "redis":
		client, err := initRedis(cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Printf("Error closing Redis connection: %v", err)
			}
		}
		return redisstore.NewSessionRepository(client), closeFn, nil

	default:
		db, err := initDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Printf("Error closing database connection: %v", err)
			}
		}
		return postgres.NewSessionRepository(db), closeFn, nil
	}
}

// initDB initializes the PostgreSQL connection with retry logic
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initRedis initializes the Redis client and verifies the connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Error closing Redis after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// loadRSAKeys loads the RSA key pair from the configured PEM files
func loadRSAKeys(cfg *config.Config) ([]byte, []byte, error) {
	privateKey, err := os.ReadFile(cfg.JWT.PrivateKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	publicKey, err := os.ReadFile(cfg.JWT.PublicKeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read public key file: %w", err)
	}

	if len(privateKey) == 0 || len(publicKey) == 0 {
		return nil, nil, fmt.Errorf("key file is empty")
	}

	return privateKey, publicKey, nil
}

// sweepExpiredSessions deletes closed-out session records on a timer
func sweepExpiredSessions(ctx context.Context, sessionService *service.SessionService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := sessionService.SweepExpired(sweepCtx); err != nil {
				log.Printf("Failed to sweep expired sessions: %v", err)
			}
			cancel()
		}
	}
}

// customErrorHandler keeps every failure inside a CORS-complete JSON
// response; an unhandled error would reach the client with no headers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("Error handling request [%s %s]: %v", c.Method(), c.Path(), err)

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
