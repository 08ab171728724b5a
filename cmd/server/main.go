package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	"github.com/sonicframe/api/internal/auth"
	"github.com/sonicframe/api/internal/handlers"
	"github.com/sonicframe/api/internal/services"
)

// getEnvAsInt returns an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsList returns a comma-separated environment variable as a slice
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildCORSConfig returns the router's CORS policy. AllowWildcard must be on
// for the `https://*.sonicframe.app` entry to match subdomains; gin-contrib
// ignores wildcard origins without it.
func buildCORSConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowOrigins = origins
	config.AllowWildcard = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-Requested-With",
	}
	config.AllowCredentials = true
	return config
}

func main() {
	// Local development convenience; production relies on real env vars
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		log.Println("Warning: GOOGLE_CLOUD_PROJECT environment variable not set")
		projectID = "default-project"
	}

	bucketName := os.Getenv("ASSETS_BUCKET_NAME")
	if bucketName == "" {
		log.Println("Warning: ASSETS_BUCKET_NAME environment variable not set")
		bucketName = "default-bucket"
	}

	ctx := context.Background()

	// Initialize Firebase
	var firebaseApp *firebase.App
	var err error

	// Try to use service account key if available, otherwise use default credentials
	if keyPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY"); keyPath != "" {
		opt := option.WithCredentialsFile(keyPath)
		firebaseApp, err = firebase.NewApp(ctx, nil, opt)
	} else {
		firebaseApp, err = firebase.NewApp(ctx, nil)
	}

	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Initialize Firebase Auth client
	firebaseAuth, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	// Initialize Firestore client
	firestoreClient, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore: %v", err)
	}
	defer firestoreClient.Close()

	// Initialize fallback-asset storage (GCS by default, S3 when configured)
	var storageService services.StorageServiceInterface
	if os.Getenv("STORAGE_PROVIDER") == "s3" {
		storageService, err = services.NewS3StorageService(ctx, bucketName)
	} else {
		storageService, err = services.NewStorageService(ctx, bucketName)
	}
	if err != nil {
		log.Fatalf("Failed to initialize storage service: %v", err)
	}
	defer storageService.Close()

	placeholderObject := os.Getenv("PLACEHOLDER_OBJECT")
	if placeholderObject == "" {
		placeholderObject = "assets/placeholder.png"
	}

	// Optionally seed the placeholder asset into the bucket on boot
	if seedFile := os.Getenv("PLACEHOLDER_SEED_FILE"); seedFile != "" {
		f, err := os.Open(seedFile)
		if err != nil {
			log.Printf("Failed to open placeholder seed file: %v", err)
		} else {
			contentType := "image/png"
			if strings.EqualFold(filepath.Ext(seedFile), ".svg") {
				contentType = "image/svg+xml"
			}
			if err := storageService.UploadObject(ctx, placeholderObject, f, contentType); err != nil {
				log.Printf("Failed to seed placeholder asset: %v", err)
			} else {
				log.Printf("Seeded placeholder asset %s", placeholderObject)
			}
			f.Close()
		}
	}

	// Initialize gateway registry with its background health probe
	registryCfg := services.DefaultGatewayRegistryConfig()
	registryCfg.IPFSGateways = getEnvAsList("IPFS_GATEWAYS", registryCfg.IPFSGateways)
	registryCfg.ArweaveGateways = getEnvAsList("ARWEAVE_GATEWAYS", registryCfg.ArweaveGateways)
	registryCfg.ProbeInterval = time.Duration(getEnvAsInt("GATEWAY_PROBE_INTERVAL_SEC", 300)) * time.Second
	registryCfg.FailureThreshold = getEnvAsInt("GATEWAY_FAILURE_THRESHOLD", 3)

	gatewayRegistry := services.NewGatewayRegistry(registryCfg)
	gatewayRegistry.Start(ctx)

	// Initialize services
	attemptTimeout := time.Duration(getEnvAsInt("RESOLVE_ATTEMPT_TIMEOUT_SEC", 5)) * time.Second
	mediaResolver := services.NewMediaResolver(gatewayRegistry, attemptTimeout)

	fingerprintCache := services.NewFingerprintCache(
		time.Duration(getEnvAsInt("FINGERPRINT_CACHE_TTL_SEC", 3600))*time.Second,
		getEnvAsInt("FINGERPRINT_CACHE_SIZE", 10000),
	)
	fingerprintService := services.NewFingerprintService(fingerprintCache)
	engagementService := services.NewEngagementService(firestoreClient, fingerprintService)

	walletCache := services.NewWalletCache(
		time.Duration(getEnvAsInt("WALLET_CACHE_TTL_HOURS", 24))*time.Hour,
		getEnvAsInt("WALLET_CACHE_SIZE", 10000),
	)
	var walletService *services.WalletService
	if lookupURL := os.Getenv("WALLET_LOOKUP_URL"); lookupURL != "" {
		walletResolver := services.NewHTTPWalletResolver(lookupURL, 10*time.Second)
		walletService = services.NewWalletService(walletCache, walletResolver)
	} else {
		log.Println("WALLET_LOOKUP_URL not provided, wallet endpoint disabled")
	}

	// Initialize middleware
	firebaseMiddleware := auth.NewFirebaseMiddleware(firebaseAuth)

	// Initialize handlers
	engagementHandler := handlers.NewEngagementHandler(engagementService)
	resolveHandler := handlers.NewResolveHandler(mediaResolver, storageService, placeholderObject)

	var walletHandler *handlers.WalletHandler
	if walletService != nil {
		walletHandler = handlers.NewWalletHandler(walletService)
	}

	// Set up Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS
	router.Use(cors.New(buildCORSConfig(getEnvAsList("CORS_ALLOW_ORIGINS", []string{
		"http://localhost:8080",
		"http://localhost:3000",
		"https://sonicframe.app",
		"https://*.sonicframe.app",
	}))))

	// Heartbeat and metrics endpoints (no auth required)
	router.GET("/heartbeat", func(c *gin.Context) {
		handlers.Heartbeat(c.Writer, c.Request)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")

	// Media resolution endpoints
	mediaGroup := v1.Group("/media")
	{
		mediaGroup.POST("/resolve", resolveHandler.Resolve)
	}

	// Engagement endpoints
	engagementGroup := v1.Group("/engagement")
	{
		// Public endpoints; plays attach the caller's uid when a valid token
		// is sent, and stay anonymous otherwise
		engagementGroup.POST("/plays", firebaseMiddleware.OptionalMiddleware(), engagementHandler.RecordPlay)
		engagementGroup.GET("/plays/count", engagementHandler.GetPlayCount)
		engagementGroup.GET("/top", engagementHandler.GetTopPlayed)
		engagementGroup.GET("/subscribe", engagementHandler.SubscribeCounters)

		// Firebase authenticated endpoints
		engagementGroup.POST("/likes/toggle", firebaseMiddleware.Middleware(), engagementHandler.ToggleLike)
		engagementGroup.GET("/likes/state", firebaseMiddleware.Middleware(), engagementHandler.GetLikeState)
		engagementGroup.POST("/migrate-likes", firebaseMiddleware.Middleware(), engagementHandler.MigrateLikes)
	}

	// Wallet endpoints (only when an external lookup is configured)
	if walletHandler != nil {
		walletGroup := v1.Group("/wallet")
		{
			walletGroup.GET("/address", firebaseMiddleware.Middleware(), walletHandler.GetWalletAddress)
		}
	}

	// Start server
	log.Printf("Starting server on port %s", port)
	log.Printf("Endpoints available:")
	log.Printf("  GET  /heartbeat")
	log.Printf("  GET  /metrics")
	log.Printf("  POST /v1/media/resolve (Resolve media reference)")
	log.Printf("  POST /v1/engagement/plays (Record play)")
	log.Printf("  GET  /v1/engagement/plays/count (Play count)")
	log.Printf("  GET  /v1/engagement/top (Top played leaderboard)")
	log.Printf("  GET  /v1/engagement/subscribe (Counter snapshot stream)")
	log.Printf("  POST /v1/engagement/likes/toggle (Firebase auth: Toggle like)")
	log.Printf("  GET  /v1/engagement/likes/state (Firebase auth: Like state)")
	log.Printf("  POST /v1/engagement/migrate-likes (Firebase auth: Consolidate legacy likes)")
	if walletHandler != nil {
		log.Printf("  GET  /v1/wallet/address (Firebase auth: Resolve wallet address)")
	}

	go func() {
		if err := router.Run(":" + port); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	gatewayRegistry.Stop()

	log.Println("Server shutdown complete")
}
