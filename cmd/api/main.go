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

	"github.com/go-site-api/internal/config"
	"github.com/go-site-api/internal/infrastructure/dynamo"
	s3infra "github.com/go-site-api/internal/infrastructure/s3"
	"github.com/go-site-api/internal/infrastructure/smtp"
	"github.com/go-site-api/internal/infrastructure/sns"
	"github.com/go-site-api/internal/pkg/secrets"
	transporthttp "github.com/go-site-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist). Replica
	// regions sit on a read-only store; only the primary may create tables.
	dynamoClient := dynamo.NewClient(cfg)
	if cfg.PrimaryInstance() {
		dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)
	}

	// Cipher behind magic-link payloads. The key is derived once at startup.
	cipher, err := secrets.NewCipher(cfg.ServerSecret)
	if err != nil {
		log.Fatalf("cipher init: %v", err)
	}

	// S3 store for call recordings.
	s3Client := s3infra.NewClient(cfg)
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketName)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:      dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		VerificationRepo: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.Verifications),
		CallRepo:         dynamo.NewCallRepo(dynamoClient, cfg.DynamoTables.Calls),
		RecordingStore:   s3Store,
		Mailer:           mailer,
		SMSSender:        smsSender,
		Cipher:           cipher,
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
		log.Printf("Server starting on :%s (env=%s, region=%s)", cfg.AppPort, cfg.AppEnv, cfg.FlyRegion)
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
