// Command seed-admin creates or updates an admin panel operator account.
//
//	seed-admin -email admin@example.com -password 's3cret'
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/yuutasakka/zeroshin-verify/internal/config"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
	"github.com/yuutasakka/zeroshin-verify/internal/infrastructure/dynamo"
	"github.com/yuutasakka/zeroshin-verify/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	email := flag.String("email", "", "operator email (required)")
	password := flag.String("password", "", "operator password (required)")
	disable := flag.Bool("disable", false, "disable the account instead of enabling it")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("both -email and -password are required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	client := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), client, cfg.DynamoTables)
	repo := dynamo.NewAdminUserRepo(client, cfg.DynamoTables.AdminUsers)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	user := &domain.AdminUser{
		UserID:    id.New(),
		Email:     *email,
		Role:      domain.RoleAdmin,
		Enable:    !*disable,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Reuse the existing user id when the account already exists so tokens
	// and audit history stay attached to it.
	if existing, err := repo.GetByEmail(ctx, *email); err == nil {
		user.UserID = existing.UserID
		user.CreatedAt = existing.CreatedAt
		user.LastLoginAt = existing.LastLoginAt
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	user.PasswordHash = string(hash)

	if err := repo.Put(ctx, user); err != nil {
		log.Fatalf("store admin user: %v", err)
	}

	stored, err := repo.Get(ctx, user.UserID)
	if err != nil {
		log.Fatalf("read back admin user: %v", err)
	}
	log.Printf("admin user ready: id=%s email=%s enable=%t", stored.UserID, stored.Email, stored.Enable)
}
