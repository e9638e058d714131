package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
	"github.com/cloudx-io/slotauction/client"
	"github.com/cloudx-io/slotauction/config"
	"github.com/cloudx-io/slotauction/core"
	"github.com/cloudx-io/slotauction/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		productID  = flag.String("product", "", "Product to follow (required)")
		token      = flag.String("token", os.Getenv("SLOTAUCTION_TOKEN"), "Bearer token (defaults to $SLOTAUCTION_TOKEN)")
		help       = flag.Bool("help", false, "Show usage information")
	)
	flag.Parse()

	if *help || *productID == "" || *token == "" {
		showUsage()
		if *productID == "" || *token == "" {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.Init(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := &client.ResultsFetcher{
		BaseURL:    cfg.Client.APIURL,
		Token:      *token,
		RetryDelay: cfg.Client.ResultsRetryDelay,
		Logger:     logger,
	}

	manager := client.NewManager(client.Options{
		Dialer:      client.GorillaDialer{URL: cfg.Client.WSURL, Token: *token},
		BaseDelay:   cfg.Client.BaseDelay,
		MaxAttempts: cfg.Client.MaxAttempts,
		OnEvent: func(msg auctionapi.Message) {
			fmt.Printf("%s %s %s\n", msg.ProductID, msg.Type, msg.Data)
			if ended(msg) {
				go printResults(ctx, fetcher, msg.ProductID)
			}
		},
		OnStatus: func(status client.Status, err error) {
			if err != nil {
				fmt.Printf("status: %s (%v)\n", status, err)
				return
			}
			fmt.Printf("status: %s\n", status)
		},
		Logger: logger,
	})

	// Each line on stdin switches to another product
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if id := strings.TrimSpace(scanner.Text()); id != "" {
				manager.Switch(id)
			}
		}
	}()

	err = manager.Run(ctx, *productID)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrAuthenticationRequired):
		fmt.Fprintln(os.Stderr, "Authentication failed: check the token")
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Connection lost: %v\n", err)
		os.Exit(3)
	}
}

func ended(msg auctionapi.Message) bool {
	if msg.Type != auctionapi.TypeActivityStatusChange {
		return false
	}
	var change auctionapi.StatusChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		zap.L().Debug("bad_status_change", zap.Error(err))
		return false
	}
	return change.Status == string(core.StatusEnded)
}

func printResults(ctx context.Context, fetcher *client.ResultsFetcher, productID string) {
	result, err := fetcher.Fetch(ctx, productID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Results unavailable for %s: %v\n", productID, err)
		return
	}
	fmt.Printf("results for %s (digest %s):\n", productID, result.Digest)
	for _, r := range result.Results {
		fmt.Printf("  #%d %s price=%.2f score=%.4f\n", r.Rank, r.DisplayName, r.FinalPrice, r.FinalScore)
	}
}

func showUsage() {
	fmt.Println("auction-viewer - follow a product's live auction events")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  auction-viewer -product <id> -token <jwt> [-config <path>]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -product   Product to follow (required)")
	fmt.Println("  -token     Bearer token, defaults to $SLOTAUCTION_TOKEN")
	fmt.Println("  -config    Path to YAML config file")
	fmt.Println("  -help      Show this help message")
	fmt.Println()
	fmt.Println("Type a product id on stdin to switch to it.")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0 - Stopped")
	fmt.Println("  1 - Usage or configuration error")
	fmt.Println("  2 - Token rejected")
	fmt.Println("  3 - Connection lost after every reconnect attempt")
}
