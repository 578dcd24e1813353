package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"valhalla/gym-api/internal/api" // Import API package
	"valhalla/gym-api/internal/config"
	"valhalla/gym-api/internal/repository/mongo"
	"valhalla/gym-api/internal/service"
	"valhalla/gym-api/internal/storage"

	"github.com/gin-gonic/gin"
)

// @title Valhalla Gym API
// @version 1.0
// @description API for managing gym client records, user accounts, and per-member progress tracking.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Valhalla Gym API...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	// The unique index on clients.assignedUserId backs the one-client-per-user
	// invariant, so index creation happens before the server takes traffic.
	log.Println("Ensuring database indexes...")
	indexCtx, indexCancel := context.WithTimeout(context.Background(), 1*time.Minute)
	if err := mongo.EnsureUserIndexes(indexCtx, appDB.Collection("users")); err != nil {
		indexCancel()
		log.Fatalf("FATAL: Could not ensure user indexes: %v", err)
	}
	if err := mongo.EnsureClientIndexes(indexCtx, appDB.Collection("clients")); err != nil {
		indexCancel()
		log.Fatalf("FATAL: Could not ensure client indexes: %v", err)
	}
	indexCancel()

	// --- Initialize Storage ---
	log.Println("Initializing object storage...")
	objectStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	clientRepo := mongo.NewMongoClientRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	clientService := service.NewClientService(clientRepo, userRepo, objectStorage, service.ProgressPolicy{
		MinWeight:       cfg.Progress.MinWeight,
		MaxWeight:       cfg.Progress.MaxWeight,
		WindowOpenHour:  cfg.Progress.WindowOpenHour,
		WindowCloseHour: cfg.Progress.WindowCloseHour,
	})

	// --- Bootstrap Admin ---
	if cfg.Admin.Password == "" {
		log.Println("WARN: admin.password not set; skipping admin bootstrap.")
	} else {
		bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authService.EnsureAdmin(bootCtx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			bootCancel()
			log.Fatalf("FATAL: Could not ensure admin account: %v", err)
		}
		bootCancel()
		log.Printf("Admin account ensured: %s", cfg.Admin.Username)
	}

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, clientService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
