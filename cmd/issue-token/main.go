// Command issue-token signs an API bearer token for a directory user. It is
// meant for operators and local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/paydesk/settlement-engine/internal/config"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	httpapi "github.com/paydesk/settlement-engine/internal/interfaces/http"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	userID := flag.Int64("uid", 0, "user id")
	email := flag.String("email", "", "user email")
	role := flag.String("role", entity.RoleBankAdmin, "user role")
	flag.Parse()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "-uid is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tokens := httpapi.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	token, err := tokens.Issue(entity.Actor{
		UserID: *userID,
		Email:  *email,
		Role:   strings.ToUpper(strings.TrimPrefix(*role, "ROLE_")),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
