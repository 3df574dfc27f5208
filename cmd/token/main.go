// Command token prints a bearer token for a user id, for local testing
// against a server that shares the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/rewards/internal/auth"
	"github.com/quizforge/rewards/internal/config"
)

func main() {
	user := flag.String("user", "", "user id (random when empty)")
	ttl := flag.Duration("ttl", 72*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	userID := uuid.New()
	if *user != "" {
		if userID, err = uuid.Parse(*user); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(1)
		}
	}

	token, err := auth.NewTokens(cfg.JWTSecret, *ttl).Issue(userID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("user:  %s\ntoken: %s\n", userID, token)
}
