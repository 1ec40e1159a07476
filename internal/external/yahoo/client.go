package yahoo

import (
	"context"
	"time"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/pkg/config"
	"github.com/wonny/findash/pkg/httputil"
	"github.com/wonny/findash/pkg/logger"
)

// Fetcher is the single I/O boundary of the pipeline
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string, lookback contracts.Lookback) contracts.FetchResult
}

// Client handles communication with the Yahoo Finance chart API
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	baseURL     string
	concurrency int
	now         func() time.Time
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, cfg config.YahooConfig, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Client{
		httpClient:  httpClient,
		logger:      log.Component("yahoo"),
		baseURL:     baseURL,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// WithClock overrides the wall clock used to anchor lookback windows
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

var _ Fetcher = (*Client)(nil)
