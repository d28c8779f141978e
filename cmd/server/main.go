package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/raihq/rai-backend/internal/config"
	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/middleware"
	"github.com/raihq/rai-backend/internal/routes"
	"github.com/raihq/rai-backend/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if cfg.JWTSecret == "change-me-in-production" && cfg.IsProduction() {
		log.Fatal("JWT_SECRET must be set in production")
	}

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	if err := services.EnsureChatIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB chat indexes: %v", err)
	} else {
		log.Println("✅ MongoDB chat indexes ensured")
	}

	// Core services
	services.InitJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	log.Println("✅ JWT service initialized")

	services.InitInfobipClient(cfg.InfobipBaseURL, cfg.InfobipAPIKey, cfg.InfobipSenderID, cfg.InfobipFromEmail)
	if services.Infobip.Configured() {
		log.Println("✅ Infobip OTP delivery configured")
	} else {
		log.Println("⚠️  WARNING: Infobip credentials not set. OTP delivery will fail.")
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY must be set")
	}
	services.InitOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITitleModel, cfg.OpenAITimeout)
	log.Printf("✅ AI provider initialized (model: %s)", cfg.OpenAIModel)

	if err := services.InitCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret); err != nil {
		log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
	}
	if services.MediaConfigured() {
		log.Println("✅ Cloudinary service initialized")
	} else {
		log.Println("Warning: Cloudinary credentials not found. Media uploads will not be available")
	}

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services.StartRedisChatSubscriber(ctx)
	services.StartAIWorkers(ctx, cfg.AIWorkers)

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.BackendHost) {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, per-IP + auth rate limiting)")
	} else {
		r.Use(middleware.RateLimitMiddleware)
	}
	r.Use(middleware.HistoryRateLimit)

	// Health check (no auth)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r)

	log.Printf("🚀 Rai backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
