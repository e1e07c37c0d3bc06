// Command server wires the image-analysis orchestrator behind an HTTP
// API: logrus JSON logging, gin router with CORS/recovery middleware,
// graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"imageguard/internal/barcode"
	"imageguard/internal/config"
	"imageguard/internal/handler"
	"imageguard/internal/metrics"
	"imageguard/internal/ocr"
	"imageguard/internal/orchestrator"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	collab := orchestrator.Collaborators{
		OCR:            ocr.NewGosseractAdapter(cfg.Modules.TextExtraction.TesseractCmd),
		BarcodeDecoder: barcode.New(),
	}

	analyzer, err := orchestrator.New(cfg, collab, nil, nil, nil, cfg.Modules.TextExtraction.Languages, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build analyzer")
	}

	collector := metrics.NewCollector()
	handlers := handler.NewDetectionHandler(analyzer, collector, log, time.Duration(cfg.General.TimeoutSeconds)*time.Second)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/analyze", handlers.AnalyzeImage)
		v1.GET("/metrics", handlers.GetMetrics)
	}

	port := 8080
	if v := os.Getenv("PORT"); v != "" {
		fmt.Sscanf(v, "%d", &port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.WithField("port", port).Info("starting image analysis server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
