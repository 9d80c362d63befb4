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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/horizonpay/backend/docs"
	"github.com/horizonpay/backend/internal/aggregator"
	"github.com/horizonpay/backend/internal/codec"
	"github.com/horizonpay/backend/internal/config"
	"github.com/horizonpay/backend/internal/database"
	"github.com/horizonpay/backend/internal/funding"
	"github.com/horizonpay/backend/internal/handlers"
	"github.com/horizonpay/backend/internal/identity"
	mW "github.com/horizonpay/backend/internal/middleware"
	"github.com/horizonpay/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Horizon Wallet API
// @version 1.0
// @description Wallet backend with bank account linking and ACH transfers
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	config.Load()

	docs.SwaggerInfo.Title = "Horizon Wallet API"
	docs.SwaggerInfo.Description = "Wallet backend with bank account linking and ACH transfers"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	idCodec, err := codec.New(codec.Config{
		SecretKey: viper.GetString("codec.secret_key"),
		Salt:      []byte(viper.GetString("codec.salt")),
	})
	if err != nil {
		log.Fatalf("Failed to initialize identifier codec: %v", err)
	}

	ledger := database.NewLedgerStore(db)
	identityService := identity.NewService(db, redisClient)
	gateway := aggregator.NewClient()
	fundingProvider := funding.NewClient()

	userService := services.NewUserService(identityService, fundingProvider, ledger, idCodec)
	linkService := services.NewLinkService(gateway, fundingProvider, ledger, idCodec, redisClient)
	bankService := services.NewBankService(ledger, idCodec)
	transferService := services.NewTransferService(fundingProvider, ledger)

	linkHandler := handlers.NewLinkHandler(linkService)
	bankHandler := handlers.NewBankHandler(bankService)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/sign-up", userService.SignUp)
		r.Post("/auth/sign-in", userService.SignIn)
		r.Post("/auth/logout", userService.Logout)

		r.Group(func(r chi.Router) {
			r.Use(mW.Auth(identityService, ledger))

			r.Get("/me", userService.Me)

			r.Post("/link/token", linkHandler.CreateLinkToken)
			r.Post("/link/exchange", linkHandler.ExchangePublicToken)

			r.Get("/banks", bankHandler.ListBanks)
			r.Get("/banks/{shareableId}", bankHandler.GetSharedBank)
			r.Get("/banks/{shareableId}/qr", bankHandler.ShareQR)

			r.Post("/transfers", transferService.CreateTransfer)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

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
