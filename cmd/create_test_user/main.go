package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"moonyetis/internal/db"
	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/repository"
	"moonyetis/internal/service"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// create_test_user registers (or reuses) a user and prints a session token
// for manual API testing.
func main() {
	username := flag.String("username", "testuser", "username")
	email := flag.String("email", "testuser@moonyetis.local", "email")
	password := flag.String("password", "testpass123", "password")
	referral := flag.String("referral", "", "referral code of an existing user")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		logger.Fatal("database connection failed", "error", err)
	}
	defer pool.Close()

	tokens, err := service.NewTokenIssuer(secret, service.TokenTTL)
	if err != nil {
		logger.Fatal("token issuer", "error", err)
	}
	store := repository.NewPostgresStore(pool)
	identity := service.NewIdentityService(store, service.NewPasswordHasher(bcrypt.DefaultCost, 1), tokens)

	res, err := identity.Register(ctx, service.RegisterInput{
		Username:     *username,
		Email:        *email,
		Password:     *password,
		ReferralCode: *referral,
	})
	switch {
	case err == nil:
		fmt.Printf("user created id=%d referral_code=%s\n", res.UserID, res.ReferralCode)
	case errors.Is(err, domain.ErrConflict):
		fmt.Println("user already exists, logging in")
	default:
		logger.Fatal("register failed", "error", err)
	}

	login, err := identity.Login(ctx, *username, *password)
	if err != nil {
		logger.Fatal("login failed", "error", err)
	}
	fmt.Printf("user id=%d balance=%d\n", login.User.ID, login.User.MooncoinsBalance)
	fmt.Printf("token=%s\n", login.Token)
}
