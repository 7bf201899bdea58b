package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wenwu/saas-platform/hosting-shop/internal/client"
	"github.com/wenwu/saas-platform/hosting-shop/internal/config"
	"github.com/wenwu/saas-platform/hosting-shop/internal/crypto"
	"github.com/wenwu/saas-platform/hosting-shop/internal/db"
	"github.com/wenwu/saas-platform/hosting-shop/internal/http"
	"github.com/wenwu/saas-platform/hosting-shop/internal/repository"
	"github.com/wenwu/saas-platform/hosting-shop/internal/service"
)

func main() {
	log.Println("Starting Hosting Shop...")

	cfg := config.Load()
	if cfg.Server.Mode == "release" {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	pool, err := db.NewPool(cfg.Database.DSN(), cfg.Database.Schema)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Repositories
	orderRepo := repository.NewOrderRepository(pool)
	serviceRepo := repository.NewHostingServiceRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	tokenRepo := repository.NewRefreshTokenRepository(pool)

	// Credentials are sealed before they ever reach a row
	sealer, err := crypto.NewSealer(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize credential sealer: %v", err)
	}

	// External clients
	gopayClient := client.NewGoPayClient(
		cfg.GoPay.APIURL,
		cfg.GoPay.GoID,
		cfg.GoPay.ClientID,
		cfg.GoPay.ClientSecret,
	)

	hestiaClient := client.NewHestiaClient(
		cfg.Hestia.APIURL,
		cfg.Hestia.Username,
		cfg.Hestia.AccessKey,
		cfg.Hestia.ServerIP,
	)

	// Services
	provisionService := service.NewProvisionService(
		orderRepo,
		serviceRepo,
		planRepo,
		eventRepo,
		gopayClient,
		hestiaClient,
		sealer,
		cfg.Hestia.PanelURL,
	)

	paymentService := service.NewPaymentService(orderRepo, eventRepo, gopayClient, provisionService)
	checkoutService := service.NewCheckoutService(cfg, orderRepo, serviceRepo, planRepo, eventRepo, gopayClient)
	tokenService := service.NewTokenService(tokenRepo, cfg.JWT.SecretKey)

	server := http.NewServer(cfg, checkoutService, paymentService, provisionService, tokenService, eventRepo)

	// Hourly purge of expired refresh tokens
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := tokenRepo.DeleteExpired(context.Background()); err != nil {
				log.Printf("Refresh token cleanup failed: %v", err)
			} else if n > 0 {
				log.Printf("Purged %d expired refresh tokens", n)
			}
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	log.Println("Server exited")
}
