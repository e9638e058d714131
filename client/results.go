package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
)

// ResultsFetcher loads a product's results after it ends. A failed fetch is retried once
// after RetryDelay and then surfaced.
type ResultsFetcher struct {
	BaseURL    string
	Token      string
	HTTP       *http.Client
	RetryDelay time.Duration

	// After replaces time.After in tests
	After  func(time.Duration) <-chan time.Time
	Logger *zap.Logger
}

func (f *ResultsFetcher) Fetch(ctx context.Context, productID string) (auctionapi.ResultsResponse, error) {
	result, err := f.fetchOnce(ctx, productID)
	if err == nil {
		return result, nil
	}
	f.logger().Warn("results_fetch_failed", zap.String("product_id", productID), zap.Error(err))

	after := f.After
	if after == nil {
		after = time.After
	}
	select {
	case <-after(f.RetryDelay):
	case <-ctx.Done():
		return auctionapi.ResultsResponse{}, ctx.Err()
	}

	result, err = f.fetchOnce(ctx, productID)
	if err != nil {
		f.logger().Error("results_fetch_retry_failed", zap.String("product_id", productID), zap.Error(err))
		return auctionapi.ResultsResponse{}, err
	}
	return result, nil
}

func (f *ResultsFetcher) fetchOnce(ctx context.Context, productID string) (auctionapi.ResultsResponse, error) {
	endpoint := fmt.Sprintf("%s/api/products/%s/results", f.BaseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return auctionapi.ResultsResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)

	httpClient := f.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return auctionapi.ResultsResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr auctionapi.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return auctionapi.ResultsResponse{}, fmt.Errorf("results request failed with status %d: %s", resp.StatusCode, apiErr.Code)
	}

	var result auctionapi.ResultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return auctionapi.ResultsResponse{}, fmt.Errorf("failed to decode results: %w", err)
	}
	return result, nil
}

func (f *ResultsFetcher) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.L()
	}
	return f.Logger
}
