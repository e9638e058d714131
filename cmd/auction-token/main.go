package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cloudx-io/slotauction/config"
	"github.com/cloudx-io/slotauction/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		userID     = flag.String("user", "", "User id placed in the sub claim (required)")
		username   = flag.String("username", "", "Display name shown in rankings")
		role       = flag.String("role", server.RoleMember, "Role: member or admin")
		weight     = flag.Float64("weight", 1.0, "Bidder weight")
		ttl        = flag.Duration("ttl", 0, "Token lifetime (defaults to auth.token_ttl)")
		help       = flag.Bool("help", false, "Show usage information")
	)
	flag.Parse()

	if *help || *userID == "" {
		showUsage()
		if *userID == "" {
			os.Exit(1)
		}
		os.Exit(0)
	}
	if *role != server.RoleMember && *role != server.RoleAdmin {
		fmt.Fprintf(os.Stderr, "Invalid role %q: must be member or admin\n", *role)
		os.Exit(1)
	}
	if *weight <= 0 {
		fmt.Fprintln(os.Stderr, "Weight must be positive")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	lifetime := *ttl
	if lifetime == 0 {
		lifetime = cfg.Auth.TokenTTL
	}

	token, err := server.SignToken(cfg.Auth.JWTSecret, server.NewClaims(*userID, *username, *role, *weight, time.Now(), lifetime))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(token)
}

func showUsage() {
	fmt.Println("auction-token - mint a development bearer token")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  auction-token -user <id> [-username <name>] [-role member|admin] [-weight <w>] [-ttl <duration>]")
	fmt.Println()
	fmt.Println("The token is signed with auth.jwt_secret from the config file or SLOTAUCTION_JWT_SECRET.")
}
