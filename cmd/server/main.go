package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundbridge/backend/docs"
	"github.com/fundbridge/backend/internal/database"
	"github.com/fundbridge/backend/internal/handlers"
	mW "github.com/fundbridge/backend/internal/middleware"
	"github.com/fundbridge/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title FundBridge Crowdfunding API
// @version 1.0
// @description API for the FundBridge crowdfunding platform
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("jwt.refresh_expiry_hours", "JWT_REFRESH_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("jwt.expiry_hours", 1)
	viper.SetDefault("jwt.refresh_expiry_hours", 336)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "FundBridge Crowdfunding API"
	docs.SwaggerInfo.Description = "API for the FundBridge crowdfunding platform"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	authService := services.NewAuthService(db, redisClient)
	accountService := services.NewAccountService(db)
	transactionService := services.NewTransactionService(db)
	projectService := services.NewProjectService(db)
	rewardService := services.NewRewardService(db)
	commentService := services.NewCommentService(db)
	fundingService := services.NewFundingService(db)
	paymentService := services.NewPaymentService(db)
	refundService := services.NewRefundService(db)
	adminService := services.NewAdminService(db)
	inquiryService := services.NewInquiryService(db)
	settlementService := services.NewSettlementService(db)
	qrService := services.NewQRService(db, redisClient)
	qrHandler := handlers.NewQRHandler(qrService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for project banners
	r.Handle("/static/banners/*", http.StripPrefix("/static/banners/",
		mW.StaticFileServer("./static/banners")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/auth/refresh", authService.Refresh)

		r.Get("/projects", projectService.List)
		r.Get("/projects/{projectId}", projectService.Get)
		r.Get("/projects/{projectId}/rewards", rewardService.List)
		r.Get("/projects/{projectId}/comments", commentService.List)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/profile", authService.GetUserProfile)

			// Virtual accounts
			r.Post("/accounts", accountService.CreateAccount)
			r.Get("/accounts/me", accountService.GetMyAccount)
			r.Get("/accounts/{accountId}", accountService.GetAccount)
			r.Post("/accounts/charge", accountService.Charge)
			r.Post("/accounts/payment", paymentService.Pay)
			r.Post("/accounts/refund", refundService.Refund)
			r.Post("/accounts/payout", settlementService.Payout)
			r.Get("/accounts/payout/{txId}/status", settlementService.PayoutStatus)

			// Movement history
			r.Get("/transactions", transactionService.ListMyTransactions)
			r.Get("/transactions/{txId}", transactionService.GetTransaction)
			r.Get("/fundings", fundingService.ListMyFundings)

			// Projects
			r.Get("/projects/mine", projectService.ListMine)
			r.Post("/projects", projectService.Create)
			r.Put("/projects/{projectId}", projectService.Modify)
			r.Delete("/projects/{projectId}", projectService.Delete)
			r.Post("/projects/{projectId}/approval", projectService.RequestApproval)

			// Rewards and comments
			r.Post("/projects/{projectId}/rewards", rewardService.Create)
			r.Delete("/projects/{projectId}/rewards/{rewardId}", rewardService.Delete)
			r.Post("/projects/{projectId}/comments", commentService.Create)
			r.Put("/projects/{projectId}/comments/{commentId}", commentService.Modify)
			r.Delete("/projects/{projectId}/comments/{commentId}", commentService.Delete)

			// Project share codes
			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/resolve", qrHandler.ResolveQR)

			// Support inquiries
			r.Post("/inquiries", inquiryService.Create)
			r.Get("/inquiries", inquiryService.ListMine)

			// Admin review queue
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireAdmin)

				r.Get("/admin/projects", adminService.ListProjects)
				r.Put("/admin/projects/{projectId}/approval", adminService.UpdateApprovalStatus)
				r.Put("/admin/projects/{projectId}/status", adminService.UpdateProjectStatus)
				r.Get("/admin/inquiries", inquiryService.ListAll)
				r.Put("/admin/inquiries/{inquiryId}/response", inquiryService.Respond)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
