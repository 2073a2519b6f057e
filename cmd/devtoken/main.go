// Command devtoken mints an owner token for local testing of the API.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"shaggydog/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	var (
		ownerFlag string
		ttlFlag   time.Duration
	)
	flag.StringVar(&ownerFlag, "owner", "", "owner id to embed as subject (random UUID when empty)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		exitWithError(errors.New("JWT_SECRET is required"))
	}
	if ttlFlag <= 0 {
		exitWithError(fmt.Errorf("-ttl must be positive, got %s", ttlFlag))
	}

	owner := strings.TrimSpace(ownerFlag)
	if owner == "" {
		owner = uuid.NewString()
	}

	token, err := middleware.NewOwnerToken(secret, owner, ttlFlag, time.Now())
	if err != nil {
		exitWithError(err)
	}
	fmt.Fprintf(os.Stderr, "owner=%s expires=%s\n", owner, time.Now().Add(ttlFlag).UTC().Format(time.RFC3339))
	fmt.Println(token)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
