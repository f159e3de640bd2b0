// Command token mints a bearer token for local development, signed with
// SPLITLEDGER_JWT_SECRET.
//
//	go run ./cmd/token -id alice -name Alice
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/models"
)

func main() {
	id := flag.String("id", "", "member id (required)")
	name := flag.String("name", "", "display name")
	picture := flag.String("picture", "", "profile image URL")
	ttl := flag.Duration("ttl", 0, "token lifetime (default SPLITLEDGER_TOKEN_TTL)")
	flag.Parse()

	if err := run(models.User{ID: *id, Name: *name, ProfileURL: *picture}, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(user models.User, ttl time.Duration) error {
	if user.ID == "" {
		return errors.New("-id is required")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("SPLITLEDGER_JWT_SECRET is not set")
	}
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}
	if user.Name == "" {
		user.Name = user.ID
	}

	token, err := auth.NewTokenSigner(cfg.JWTSecret, ttl).Sign(user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
