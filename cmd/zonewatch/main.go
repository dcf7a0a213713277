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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telecheck/zonewatch/internal/alerting"
	"github.com/telecheck/zonewatch/internal/api"
	"github.com/telecheck/zonewatch/internal/areaindex"
	"github.com/telecheck/zonewatch/internal/config"
	"github.com/telecheck/zonewatch/internal/logging"
	"github.com/telecheck/zonewatch/internal/normalize"
	"github.com/telecheck/zonewatch/internal/observability"
	"github.com/telecheck/zonewatch/internal/pipeline"
	"github.com/telecheck/zonewatch/internal/repository"
	"github.com/telecheck/zonewatch/internal/scheduler"
	"github.com/telecheck/zonewatch/internal/validator"
	"github.com/telecheck/zonewatch/internal/verify"
	"github.com/telecheck/zonewatch/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	areas, err := db.ListAreas(ctx)
	if err != nil {
		logging.Fatalf("Failed to load administrative areas: %v", err)
	}
	mappings, err := db.ListPostcodeMappings(ctx)
	if err != nil {
		logging.Fatalf("Failed to load postcode mappings: %v", err)
	}
	index := areaindex.New(areas, mappings)

	var sinks []alerting.Sink
	var kafkaSink *alerting.KafkaSink
	if len(cfg.Alerts.KafkaBrokers) > 0 {
		kafkaSink = alerting.NewKafkaSink(cfg.Alerts.KafkaBrokers, cfg.Alerts.KafkaTopic)
		sinks = append(sinks, kafkaSink)
		slog.Info("kafka alert sink enabled", "topic", cfg.Alerts.KafkaTopic)
	}
	dispatcher := alerting.NewDispatcher(db, sinks...)

	primary := pipeline.NewFeedAdapter("disasterassist-primary", cfg.Pipelines.PrimaryURL, cfg.Pipelines.Timeout)
	secondary := pipeline.NewFeedAdapter("disasterassist-secondary", cfg.Pipelines.SecondaryURL, cfg.Pipelines.Timeout)

	normalizer := normalize.New(index)
	v := validator.New(primary, secondary, normalizer, db, db, dispatcher, metrics, cfg.Pipelines.Timeout, clock)

	pool := worker.NewPool(cfg.Verify.BatchWorkers, verify.BatchLimit)
	pool.Start(ctx)

	verifier := verify.NewService(db, db, db, index, pool, metrics, cfg.Pipelines.Authoritative, clock)

	sched := scheduler.New(cfg.Scheduler, v, db, db, dispatcher, db, metrics, clock)
	sched.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Verify.RateLimitRPS))

	handler := api.NewHandler(verifier, v, db, db, db)
	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	sched.Stop()
	pool.Stop()
	dispatcher.Close()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			slog.Error("kafka sink close error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
