package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/photogate/backend/internal/config"
	"github.com/photogate/backend/internal/handlers"
	"github.com/photogate/backend/internal/middleware"
	"github.com/photogate/backend/internal/models"
	"github.com/photogate/backend/internal/pipeline"
	"github.com/photogate/backend/internal/services"
	"github.com/photogate/backend/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis (rate limiting)
	redisClient := models.InitRedis(cfg)
	defer redisClient.Close()

	// Initialize blob store
	blobs, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("Failed to init blob store: %v", err)
	}

	// Initialize services and the admission pipeline
	recordService := services.NewRecordService(db)
	runner := pipeline.NewRunner(recordService, blobs, cfg)
	pool := pipeline.NewPool(cfg.PipelineWorkers, cfg.PipelineQueue, func(ctx context.Context, id uuid.UUID) {
		if _, err := runner.Run(ctx, id); err != nil {
			log.Printf("pipeline: run for %s failed: %v", id, err)
		}
	})
	admissionService := services.NewAdmissionService(recordService, blobs, pool, cfg)

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	// Initialize handlers
	imageHandler := handlers.NewImageHandler(admissionService, cfg)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Static serving of local blobs ("signed" URLs for the local backend)
	if local, ok := blobs.(*storage.LocalStore); ok {
		router.Static("/uploads", local.Root())
	}

	// Setup routes
	api := router.Group("/api")
	{
		// Catch-all OPTIONS handler for CORS preflight requests
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		images := api.Group("/images")
		{
			uploadGroup := images.Group("")
			uploadGroup.Use(middleware.UploadRateLimit(redisClient, cfg))
			{
				uploadGroup.POST("", imageHandler.Upload)
			}

			images.GET("", imageHandler.List)
			images.GET("/:id", imageHandler.GetByID)
			images.DELETE("/:id", imageHandler.Delete)
			images.POST("/:id/process", imageHandler.Process)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second, // allow large batch uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Drain in-flight pipeline runs
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.PipelineDrainTimeout)
	defer drainCancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		log.Printf("Pipeline pool did not drain: %v", err)
	}

	log.Println("Server exited")
}
