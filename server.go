package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/pkl-testcase/wo_backend/config"
	"github.com/pkl-testcase/wo_backend/ledger"
	"github.com/pkl-testcase/wo_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// newRouter installs the middleware chain and the JSON routes. limiter may be nil.
func newRouter(app *App, limiter *RateLimiter, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(readinessGate(app))
	r.GET("/healthz", healthz)

	r.Use(corsMiddleware())
	if limiter != nil {
		r.Use(limiter.RateLimitMiddleware)
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group(config.APIPrefix())
	if config.APIPrefix() != "" {
		api.GET("/healthz", healthz)
	}
	app.registerRoutes(api)
	r.NoRoute(customNotFoundHandler)
	return r
}

func healthz(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func main() {
	port := os.Getenv("API_PORT_2")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var limiterClient *redis.Client
	if config.RedisConfigured() {
		limiterClient = config.NewRedisClient()
		defer limiterClient.Close()
	}

	// Start the HTTP server first; routes answer 503 until Attach.
	app := NewApp(logger)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(app, rateLimiterFromEnv(limiterClient), logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	db, err := config.ConnectDatabaseWithRetry(sigCtx, config.DatabaseSettingsFromEnv("DB_"))
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Fatal(err.Error())
	}
	defer config.CloseDatabase(db)

	migrate := !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true")
	if migrate {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	rdb, locker := connectRedis(sigCtx, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	addressLedger, closeLedger, err := ledger.NewFromEnv(sigCtx, db, rdb, migrate)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "ledger", "driver": config.LedgerDriver()}).Fatal(err.Error())
	}
	defer closeLedger()

	components := Components{
		DB:            db,
		Ledger:        addressLedger,
		ReplaceOnly:   config.UpsertMode() == config.UpsertModeReplace,
		AutoReconcile: config.AutoReconcileOnUpsert(),
		QueryTimeout:  config.QueryTimeout(),
		Locker:        locker,
	}
	publisher, err := config.NewEventPublisherFromEnv(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("event publishing disabled: " + err.Error())
	}
	if publisher != nil {
		defer publisher.Close()
		components.Publisher = publisher
	}

	app.Attach(components)

	logger.WithFields(logrus.Fields{
		"info":          "Connection Established",
		"ledger":        config.LedgerDriver(),
		"colocated":     app.reconciler.Colocated(),
		"upsertMode":    config.UpsertMode(),
		"autoReconcile": components.AutoReconcile,
	}).Info("listening on :", port, config.APIPrefix())
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}

// connectRedis is optional unless the ledger lives in Redis.
func connectRedis(ctx context.Context, logger *logrus.Logger) (*redis.Client, *redislock.Client) {
	if !config.RedisConfigured() {
		if config.LedgerDriver() == config.LedgerDriverRedis {
			logger.WithFields(logrus.Fields{"field": "redis"}).Fatal("LEDGER_DRIVER=redis requires REDIS_ADDRESS")
		}
		return nil, nil
	}
	if config.LedgerDriver() == config.LedgerDriverRedis {
		rdb, locker, err := config.ConnectRedisWithRetry(ctx)
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Fatal(err.Error())
		}
		return rdb, locker
	}

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(config.IntFromEnv("REDIS_CONNECT_TIMEOUT_SECONDS", 30))*time.Second)
	defer cancel()
	rdb, locker, err := config.ConnectRedisWithRetry(connectCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis not ready; proceeding without sweep lock: " + err.Error())
		return nil, nil
	}
	return rdb, locker
}
