package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/yuutasakka/zeroshin-verify/internal/application/csrf"
	"github.com/yuutasakka/zeroshin-verify/internal/application/otp"
	"github.com/yuutasakka/zeroshin-verify/internal/application/session"
	"github.com/yuutasakka/zeroshin-verify/internal/application/tokens"
	"github.com/yuutasakka/zeroshin-verify/internal/config"
	"github.com/yuutasakka/zeroshin-verify/internal/infrastructure/dynamo"
	jwtinfra "github.com/yuutasakka/zeroshin-verify/internal/infrastructure/jwt"
	"github.com/yuutasakka/zeroshin-verify/internal/infrastructure/sns"
	transporthttp "github.com/yuutasakka/zeroshin-verify/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// SNS SMS sender. In development a failed setup falls back to logging
	// the messages; production refuses to start without a real gateway.
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else if cfg.IsProduction() {
		log.Fatalf("SNS sender unavailable: %v", err)
	} else {
		log.Printf("WARN: SNS sender not available, logging SMS instead: %v", err)
		smsSender = sns.LogSender{}
	}

	codec := jwtinfra.NewCodec(cfg.JWTSecret)
	tokenMgr := tokens.NewManager(codec, cfg.TokenIssuer, cfg.TokenAudience)

	csrfRegistry := csrf.NewRegistry(cfg.CSRFSecret, csrf.NewMemoryStore(), nil)
	defer csrfRegistry.Close()
	sessionMgr := session.NewManager(session.NewMemoryStore(), csrfRegistry)
	defer sessionMgr.Close()

	otpSvc := otp.NewService(
		dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs),
		smsSender,
		otp.Limits{
			PerPhonePerHour: cfg.OTPPerPhonePerHour,
			PerIPPerHour:    cfg.OTPPerIPPerHour,
			GlobalPerHour:   cfg.OTPGlobalPerHour,
			FanOutLimit:     cfg.OTPFanOutLimit,
		},
	)
	defer otpSvc.Close()

	deps := &transporthttp.Deps{
		OTPService:    otpSvc,
		AdminUserRepo: dynamo.NewAdminUserRepo(dynamoClient, cfg.DynamoTables.AdminUsers),
		CSRFRegistry:  csrfRegistry,
		Sessions:      sessionMgr,
		TokenManager:  tokenMgr,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
